package tools

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(_ context.Context, args json.RawMessage) (any, error) {
	var v map[string]any
	if err := json.Unmarshal(args, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func TestRegister_LastWins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("pick", func(context.Context, json.RawMessage) (any, error) { return "first", nil }))
	require.NoError(t, r.Register("pick", func(context.Context, json.RawMessage) (any, error) { return "second", nil }))

	out, err := r.Invoke(context.Background(), "pick", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", out)
}

func TestRegister_Validation(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register("", echoHandler), ErrToolNameRequired)
	assert.ErrorIs(t, r.Register("x", nil), ErrNilHandler)
	assert.ErrorIs(t, r.RegisterTool(Descriptor{Name: "x"}, echoHandler), ErrToolDescriptionRequired)
	assert.Error(t, r.RegisterTool(Descriptor{Name: "x", Description: "d", Parameters: json.RawMessage(`{"type": 12}`)}, echoHandler))
}

func TestInvoke_UnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Invoke(context.Background(), "missing", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrUnknownTool)

	var execErr *ToolExecutionError
	assert.False(t, errors.As(err, &execErr))
}

func TestInvoke_DescriptorWithoutHandlerIsUnknown(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterTool(ShowHintsDescriptor, nil))
	assert.False(t, r.Has(ShowHintsTool))

	_, err := r.Invoke(context.Background(), ShowHintsTool, json.RawMessage(`{"hints":["a"]}`))
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestInvoke_ExecutionErrors(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry()
	require.NoError(t, r.Register("fails", func(context.Context, json.RawMessage) (any, error) { return nil, boom }))
	require.NoError(t, r.Register("panics", func(context.Context, json.RawMessage) (any, error) { panic("kaboom") }))
	require.NoError(t, r.RegisterTool(ShowHintsDescriptor, echoHandler))

	tests := []struct {
		name string
		tool string
		args string
	}{
		{"handler error", "fails", `{}`},
		{"handler panic", "panics", `{}`},
		{"invalid json", "fails", `{not json`},
		{"schema violation", ShowHintsTool, `{"hints":"not-an-array"}`},
		{"missing required", ShowHintsTool, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Invoke(context.Background(), tt.tool, json.RawMessage(tt.args))
			var execErr *ToolExecutionError
			require.ErrorAs(t, err, &execErr)
			assert.Equal(t, tt.tool, execErr.Tool)
		})
	}

	_, err := r.Invoke(context.Background(), "fails", nil)
	assert.ErrorIs(t, err, boom)
}

func TestDispatch_Success(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("echo", echoHandler))

	var got Result
	var gotErr error
	err := r.Dispatch(context.Background(), Call{Name: "echo", CallID: "call_1", Arguments: json.RawMessage(`{"a":1}`)},
		func(res Result, err error) { got, gotErr = res, err })
	require.NoError(t, err)
	r.Wait()

	require.NoError(t, gotErr)
	assert.Equal(t, "call_1", got.CallID)
	assert.Equal(t, "echo", got.Name)
	assert.Equal(t, map[string]any{"a": float64(1)}, got.Output)
}

func TestDispatch_UnknownToolDoesNotCallBack(t *testing.T) {
	r := NewRegistry()
	called := false
	err := r.Dispatch(context.Background(), Call{Name: "nope", CallID: "c"}, func(Result, error) { called = true })
	assert.ErrorIs(t, err, ErrUnknownTool)
	r.Wait()
	assert.False(t, called)
}

func TestDispatch_DoesNotBlockCaller(t *testing.T) {
	r := NewRegistry()
	release := make(chan struct{})
	require.NoError(t, r.Register("slow", func(ctx context.Context, _ json.RawMessage) (any, error) {
		<-release
		return "done", nil
	}))

	finished := make(chan Result, 1)
	start := time.Now()
	require.NoError(t, r.Dispatch(context.Background(), Call{Name: "slow", CallID: "c"}, func(res Result, _ error) { finished <- res }))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	select {
	case <-finished:
		t.Fatal("handler finished before release")
	default:
	}
	close(release)
	assert.Equal(t, "done", (<-finished).Output)
}

func TestDispatch_BoundedConcurrency(t *testing.T) {
	r := NewRegistry(WithMaxConcurrent(2))
	var running, peak int32
	gate := make(chan struct{})
	require.NoError(t, r.Register("work", func(context.Context, json.RawMessage) (any, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-gate
		atomic.AddInt32(&running, -1)
		return nil, nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		require.NoError(t, r.Dispatch(context.Background(), Call{Name: "work"}, func(Result, error) { wg.Done() }))
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestDispatch_CancelledContextReportsError(t *testing.T) {
	r := NewRegistry(WithMaxConcurrent(1))
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	require.NoError(t, r.Register("hold", func(context.Context, json.RawMessage) (any, error) {
		started <- struct{}{}
		<-block
		return nil, nil
	}))
	require.NoError(t, r.Dispatch(context.Background(), Call{Name: "hold"}, func(Result, error) {}))
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	require.NoError(t, r.Dispatch(ctx, Call{Name: "hold", CallID: "late"}, func(_ Result, err error) { errCh <- err }))
	cancel()

	err := <-errCh
	var execErr *ToolExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.ErrorIs(t, err, context.Canceled)
	close(block)
	r.Wait()
}

func TestDefinitions(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r, func([]string) {}))
	require.NoError(t, r.Register("undeclared", echoHandler))

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, CurrentTimeTool, defs[0].Name)
	assert.Equal(t, ShowHintsTool, defs[1].Name)
	assert.Equal(t, "function", defs[0].Type)

	d := Descriptor{Name: "bare", Description: "no params"}
	assert.JSONEq(t, `{"type":"object","properties":{}}`, string(d.Definition().Parameters))
}

func TestBuiltins(t *testing.T) {
	var shown []string
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r, func(h []string) { shown = h }))

	out, err := r.Invoke(context.Background(), ShowHintsTool, json.RawMessage(`{"hints":["Yes, please","No, thanks"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Yes, please", "No, thanks"}, shown)
	assert.Equal(t, map[string]any{"success": true, "count": 2}, out)

	fixed := time.Date(2025, 3, 14, 15, 9, 0, 0, time.UTC)
	h := NewCurrentTimeHandler(func() time.Time { return fixed }, time.UTC)
	out, err = h(context.Background(), nil)
	require.NoError(t, err)
	m := out.(map[string]any)
	assert.Equal(t, "2025-03-14T15:09:00Z", m["time"])
	assert.Equal(t, "UTC", m["timezone"])
}

func TestLoadDescriptors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weather.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`apiVersion: voicekit.altairalabs.ai/v1alpha1
kind: Tool
metadata:
  name: getWeather
spec:
  description: Look up the weather for a city
  parameters:
    type: object
    properties:
      city:
        type: string
    required: [city]
`), 0o600))

	r := NewRegistry()
	require.NoError(t, r.LoadDescriptors(path))
	descs := r.Descriptors()
	require.Len(t, descs, 1)
	assert.Equal(t, "getWeather", descs[0].Name)
	assert.Equal(t, "Look up the weather for a city", descs[0].Description)

	require.NoError(t, r.Register("getWeather", echoHandler))
	_, err := r.Invoke(context.Background(), "getWeather", json.RawMessage(`{}`))
	var execErr *ToolExecutionError
	assert.ErrorAs(t, err, &execErr)

	out, err := r.Invoke(context.Background(), "getWeather", json.RawMessage(`{"city":"Taipei"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"city": "Taipei"}, out)

	assert.Error(t, r.LoadDescriptors(filepath.Join(dir, "missing.yaml")))
}
