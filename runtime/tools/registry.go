package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/AltairaLabs/VoiceKit/runtime/realtime"
)

// DefaultMaxConcurrent bounds how many handlers run at once per registry.
const DefaultMaxConcurrent = 4

type entry struct {
	handler    Handler
	descriptor *Descriptor
}

// Registry holds the tools available to one session.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]entry
	validator *SchemaValidator
	sem       *semaphore.Weighted
	inflight  sync.WaitGroup
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxConcurrent bounds the number of handlers executing at once.
func WithMaxConcurrent(n int64) Option {
	return func(r *Registry) {
		if n > 0 {
			r.sem = semaphore.NewWeighted(n)
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries:   make(map[string]entry),
		validator: NewSchemaValidator(),
		sem:       semaphore.NewWeighted(DefaultMaxConcurrent),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds handler to name. A later registration for the same name
// replaces the earlier one; a previously declared descriptor is kept.
func (r *Registry) Register(name string, handler Handler) error {
	if name == "" {
		return ErrToolNameRequired
	}
	if handler == nil {
		return ErrNilHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[name]
	e.handler = handler
	r.entries[name] = e
	return nil
}

// RegisterTool declares descriptor to the endpoint and binds handler to it.
// handler may be nil when the handler is registered separately.
func (r *Registry) RegisterTool(descriptor Descriptor, handler Handler) error {
	if descriptor.Name == "" {
		return ErrToolNameRequired
	}
	if descriptor.Description == "" {
		return ErrToolDescriptionRequired
	}
	if len(descriptor.Parameters) > 0 {
		if err := r.validator.Compile(descriptor.Parameters); err != nil {
			return fmt.Errorf("tool %s: invalid parameter schema: %w", descriptor.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[descriptor.Name]
	d := descriptor
	e.descriptor = &d
	if handler != nil {
		e.handler = handler
	}
	r.entries[descriptor.Name] = e
	return nil
}

// Has reports whether a handler is bound to name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[name].handler != nil
}

// Descriptors returns the declared tools sorted by name.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		if e.descriptor != nil {
			out = append(out, *e.descriptor)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Definitions returns the declared tools in session.update format.
func (r *Registry) Definitions() []realtime.ToolDef {
	descs := r.Descriptors()
	defs := make([]realtime.ToolDef, len(descs))
	for i, d := range descs {
		defs[i] = d.Definition()
	}
	return defs
}

func (r *Registry) lookup(name string) (entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok && e.handler != nil
}

// Invoke runs the handler for name synchronously. It returns ErrUnknownTool
// when nothing is bound to name and *ToolExecutionError when the arguments
// are not valid JSON, fail schema validation, or the handler errors or panics.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	return r.invoke(ctx, Call{Name: name, Arguments: args})
}

func (r *Registry) invoke(ctx context.Context, call Call) (out any, err error) {
	e, ok := r.lookup(call.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}

	fail := func(cause error) error {
		return &ToolExecutionError{Tool: call.Name, CallID: call.CallID, Cause: cause}
	}

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if !json.Valid(args) {
		return nil, fail(errors.New("arguments are not valid JSON"))
	}
	if e.descriptor != nil {
		if verr := r.validator.ValidateArgs(*e.descriptor, args); verr != nil {
			return nil, fail(verr)
		}
	}

	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = fail(fmt.Errorf("panic: %v", p))
		}
	}()

	out, err = e.handler(ctx, args)
	if err != nil {
		return nil, fail(err)
	}
	return out, nil
}

// Dispatch starts call on its own goroutine and returns immediately. done
// is invoked exactly once with either the result or the failure. An unknown
// tool is reported synchronously through the return value and done is not
// called.
func (r *Registry) Dispatch(ctx context.Context, call Call, done func(Result, error)) error {
	if _, ok := r.lookup(call.Name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()

		if err := r.sem.Acquire(ctx, 1); err != nil {
			done(Result{}, &ToolExecutionError{Tool: call.Name, CallID: call.CallID, Cause: err})
			return
		}
		out, err := r.invoke(ctx, call)
		r.sem.Release(1)

		if err != nil {
			done(Result{}, err)
			return
		}
		done(Result{CallID: call.CallID, Name: call.Name, Output: out}, nil)
	}()
	return nil
}

// Wait blocks until every dispatched call has finished.
func (r *Registry) Wait() {
	r.inflight.Wait()
}
