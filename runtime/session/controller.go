// Package session runs one realtime voice conversation at a time. A
// Controller acquires the microphone, fetches a credential, opens the
// transport and primes the conversation; from then on a single goroutine
// consumes every session event (inbound control messages, tool
// completions, typed text, watchdog expiry) in order until the session ends.
// The controller can be started again after it returns to Idle.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AltairaLabs/VoiceKit/runtime/credentials"
	"github.com/AltairaLabs/VoiceKit/runtime/events"
	"github.com/AltairaLabs/VoiceKit/runtime/logger"
	"github.com/AltairaLabs/VoiceKit/runtime/media"
	"github.com/AltairaLabs/VoiceKit/runtime/prompt"
	"github.com/AltairaLabs/VoiceKit/runtime/realtime"
	"github.com/AltairaLabs/VoiceKit/runtime/router"
	"github.com/AltairaLabs/VoiceKit/runtime/telemetry"
	"github.com/AltairaLabs/VoiceKit/runtime/tools"
	"github.com/AltairaLabs/VoiceKit/runtime/transcript"
	"github.com/AltairaLabs/VoiceKit/runtime/transport"
	"github.com/AltairaLabs/VoiceKit/runtime/watchdog"
)

// Status is the lifecycle phase of a Controller.
type Status int

// Lifecycle phases.
const (
	Idle Status = iota
	Connecting
	Active
	Stopping
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Status texts shown to the user.
const (
	TextIdle       = "Idle"
	TextConnecting = "Connecting..."
	TextActive     = "Session active"
	TextStopped    = "Session stopped"
	TextFailed     = "Error: unable to start session"
)

// Reasons a session ended.
const (
	ReasonUser       = "user"
	ReasonWatchdog   = "watchdog"
	ReasonConnection = "connection"
)

const (
	defaultOpenTimeout = 15 * time.Second
	queueSize          = 64
)

var errChannelClosed = errors.New("control channel closed by remote")

// Config wires a Controller to its collaborators. Transport, Source and
// Issuer are required.
type Config struct {
	Transport transport.Transport
	Source    media.Source
	// Sink plays remote audio. It is owned by the caller and reused across
	// sessions.
	Sink   media.Sink
	Issuer credentials.Issuer
	// Selector is passed to the issuer (the avatar name).
	Selector string

	Tools    *tools.Registry
	Pack     *prompt.Pack
	Scenario prompt.Scenario
	// Session is sent in the priming session.update. Its tools are taken
	// from Tools and its voice from the issued credential when set.
	Session realtime.SessionConfig

	// Policy drives the inactivity watchdog; nil disables it.
	Policy       watchdog.Policy
	Clock        watchdog.Clock
	WatchdogTick time.Duration

	VolumeInterval time.Duration
	// OpenTimeout bounds the wait for the control channel to open.
	OpenTimeout  time.Duration
	MaxRawEvents int

	Bus           *events.EventBus
	Tracer        trace.Tracer
	TransportName string
	NewID         func() string
}

// Ended describes a session that returned to Idle. Err is
// watchdog.ErrInactivity for watchdog terminations and the transport
// failure for connection losses. Transcript is the conversation as it was
// just before teardown cleared it.
type Ended struct {
	SessionID  string
	Reason     string
	Err        error
	Duration   time.Duration
	Transcript []transcript.Turn
}

// Snapshot is a consistent view of the observable session state.
type Snapshot struct {
	SessionID  string
	Status     Status
	StatusText string
	Transcript []transcript.Turn
	Countdown  int
	Speaking   bool
}

// Controller owns every resource of the current session and is the only
// writer of its transcript.
type Controller struct {
	cfg   Config
	clock watchdog.Clock

	mu          sync.Mutex
	status      Status
	statusText  string
	gen         uint64
	sess        *runState
	startCancel context.CancelFunc
	onEnded     []func(Ended)

	transcript  *transcript.Transcript
	raw         *rawLog
	localMeter  *media.VolumeMeter
	remoteMeter *media.VolumeMeter
	countdown   atomic.Int32
	speaking    atomic.Bool

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

// New validates cfg and returns an idle Controller.
func New(cfg Config) (*Controller, error) {
	switch {
	case cfg.Transport == nil:
		return nil, errors.New("session: transport is required")
	case cfg.Source == nil:
		return nil, errors.New("session: audio source is required")
	case cfg.Issuer == nil:
		return nil, errors.New("session: credential issuer is required")
	}
	if cfg.Tools == nil {
		cfg.Tools = tools.NewRegistry()
	}
	if cfg.Pack == nil {
		cfg.Pack = prompt.DefaultPack()
	}
	if cfg.Clock == nil {
		cfg.Clock = watchdog.SystemClock{}
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaultOpenTimeout
	}
	if cfg.Tracer == nil {
		cfg.Tracer = telemetry.Tracer(nil)
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.TransportName == "" {
		cfg.TransportName = "custom"
	}

	return &Controller{
		cfg:         cfg,
		clock:       cfg.Clock,
		statusText:  TextIdle,
		transcript:  transcript.New(),
		raw:         newRawLog(cfg.MaxRawEvents),
		localMeter:  media.NewVolumeMeter(cfg.VolumeInterval),
		remoteMeter: media.NewVolumeMeter(cfg.VolumeInterval),
		subs:        make(map[int]chan Snapshot),
	}, nil
}

// runState is everything one session allocates. A new one is created on
// every Start and discarded at teardown.
type runState struct {
	id      string
	gen     uint64
	ctx     context.Context //nolint:containedctx // session lifetime
	cancel  context.CancelFunc
	emitter *events.Emitter
	started time.Time

	stream   media.Stream
	conn     *transport.Connection
	watchdog *watchdog.Watchdog
	state    router.State

	queue     chan loopEvent
	done      chan struct{}
	startDone chan struct{}
	stopped   atomic.Bool
}

// Start opens a new session. It is accepted only from Idle and returns once
// the control channel is open and the priming messages were sent. On
// failure everything acquired so far is released and a *StartupError is
// returned.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.status != Idle {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.gen++
	id := c.cfg.NewID()
	rs := &runState{
		id:        id,
		gen:       c.gen,
		emitter:   events.NewEmitter(c.cfg.Bus, id),
		queue:     make(chan loopEvent, queueSize),
		done:      make(chan struct{}),
		startDone: make(chan struct{}),
	}
	startCtx, cancelStart := context.WithCancel(ctx)
	c.sess = rs
	c.startCancel = cancelStart
	c.setStatusLocked(Connecting, TextConnecting)
	c.mu.Unlock()
	defer close(rs.startDone)
	defer cancelStart()
	c.publish()

	startCtx = logger.WithSessionID(startCtx, id)
	startCtx = logger.WithTransport(startCtx, c.cfg.TransportName)
	rs.ctx, rs.cancel = context.WithCancel(context.WithoutCancel(startCtx))
	rs.started = c.clock.Now()
	rs.emitter.SessionStarting(c.cfg.TransportName)
	logger.InfoContext(startCtx, "Starting session", "selector", c.cfg.Selector)

	spanCtx, span := c.cfg.Tracer.Start(startCtx, "voicekit.session.start",
		trace.WithAttributes(telemetrySessionAttrs(id, c.cfg.TransportName)...))
	defer span.End()

	err := c.startup(spanCtx, rs)

	// Stop marks rs under c.mu, so checking here decides whether the stop
	// aborts the start or ends the active session.
	c.mu.Lock()
	if err == nil && (rs.stopped.Load() || startCtx.Err() != nil) {
		cause := startCtx.Err()
		if cause == nil {
			cause = context.Canceled
		}
		err = &StartupError{Stage: StageConfigure, Cause: cause}
	}
	if err == nil {
		c.startCancel = nil
		rs.watchdog = c.newWatchdog(rs)
		c.setStatusLocked(Active, TextActive)
	}
	c.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.rollback(rs)
		var se *StartupError
		if errors.As(err, &se) {
			rs.emitter.SessionStartFailed(se.Stage, se.Cause)
		}
		logger.ErrorContext(startCtx, "Session start failed", "error", err)
		return err
	}

	go c.pump(rs)
	go c.playRemote(rs)
	go c.run(rs)

	setup := c.clock.Now().Sub(rs.started)
	rs.emitter.SessionStarted(c.cfg.TransportName, setup)
	logger.InfoContext(startCtx, "Session active", "setup", setup)
	c.publish()
	return nil
}

// startup runs the acquisition stages in order. Each stage gets its own
// span; the first failure stops the sequence.
func (c *Controller) startup(ctx context.Context, rs *runState) error {
	// Cancelling Start (or Stop during Connecting) tears down whatever the
	// stages have opened on the session context.
	unlink := context.AfterFunc(ctx, rs.cancel)
	defer unlink()

	stage := func(name string, fn func(context.Context) error) error {
		sctx, span := c.cfg.Tracer.Start(ctx, "voicekit.session."+name)
		defer span.End()
		if err := fn(logger.WithStage(sctx, name)); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return &StartupError{Stage: name, Cause: err}
		}
		return nil
	}

	var local media.Stream
	if err := stage(StageMedia, func(context.Context) error {
		stream, err := c.cfg.Source.Capture(rs.ctx)
		if err != nil {
			return err
		}
		rs.stream = stream
		c.localMeter.Start(nil)
		c.remoteMeter.Start(nil)
		local = &meteredStream{
			Stream: stream,
			frames: media.Tee(rs.ctx, stream.Frames(), c.localMeter.Observe),
		}
		return nil
	}); err != nil {
		return err
	}

	var token credentials.Token
	if err := stage(StageCredential, func(sctx context.Context) error {
		t, err := c.cfg.Issuer.Issue(sctx, c.cfg.Selector)
		if err != nil {
			return err
		}
		if t.Expired(c.clock.Now()) {
			return ErrCredentialExpired
		}
		token = t
		return nil
	}); err != nil {
		return err
	}

	if err := stage(StageConnect, func(sctx context.Context) error {
		cred := transport.Credential{Secret: token.Value, Voice: token.Voice}
		conn, err := c.cfg.Transport.Open(rs.ctx, cred, local)
		if err != nil {
			return err
		}
		rs.conn = conn
		return c.awaitOpen(sctx, conn)
	}); err != nil {
		return err
	}

	return stage(StageConfigure, func(context.Context) error {
		msgs, err := c.cfg.Pack.Priming(c.cfg.Scenario, c.sessionConfig(token))
		if err != nil {
			return err
		}
		return c.send(rs, msgs...)
	})
}

// sessionConfig is the session.update payload for a session opened with
// token.
func (c *Controller) sessionConfig(token credentials.Token) realtime.SessionConfig {
	sc := c.cfg.Session
	sc.Tools = c.cfg.Tools.Definitions()
	if token.Voice != "" {
		sc.Voice = token.Voice
	}
	return sc
}

func (c *Controller) awaitOpen(ctx context.Context, conn *transport.Connection) error {
	timer := time.NewTimer(c.cfg.OpenTimeout)
	defer timer.Stop()
	select {
	case <-conn.Control.Opened():
		return nil
	case <-conn.Control.Closed():
		return &transport.ConnectionError{Stage: transport.StageDial, Cause: errChannelClosed}
	case <-timer.C:
		return &transport.ConnectionError{Stage: transport.StageDial, Cause: errors.New("control channel did not open in time")}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// rollback undoes a failed Start.
func (c *Controller) rollback(rs *runState) {
	c.release(rs)
	c.mu.Lock()
	c.gen++
	c.sess = nil
	c.startCancel = nil
	text := TextFailed
	if rs.stopped.Load() {
		text = TextStopped
	}
	c.setStatusLocked(Idle, text)
	c.mu.Unlock()
	c.publish()
}

// release frees every resource of rs. It is safe on partially built states.
func (c *Controller) release(rs *runState) {
	if rs.watchdog != nil {
		rs.watchdog.Cancel()
	}
	rs.cancel()
	if rs.conn != nil {
		if err := rs.conn.Close(); err != nil {
			logger.DebugContext(rs.ctx, "error closing connection", "error", err)
		}
	}
	if rs.stream != nil {
		if err := rs.stream.Close(); err != nil {
			logger.DebugContext(rs.ctx, "error closing capture stream", "error", err)
		}
	}
	c.localMeter.Stop()
	c.remoteMeter.Stop()
}

// Stop ends the current session with reason "user". During Connecting it
// aborts the start instead. It returns once the controller is idle and is a
// no-op when already idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	rs, status, cancel := c.sess, c.status, c.startCancel
	if rs != nil && status == Connecting {
		rs.stopped.Store(true)
	}
	c.mu.Unlock()
	if rs == nil {
		return
	}

	switch status {
	case Connecting:
		if cancel != nil {
			cancel()
		}
		<-rs.startDone
	case Active, Stopping:
		c.post(rs, stopRequest{})
		<-rs.done
	}
}

// SendText submits typed user input. It cancels the watchdog, appends a
// final user turn and asks the endpoint to respond.
func (c *Controller) SendText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	rs := c.activeSession()
	if rs == nil {
		return ErrNotActive
	}

	reply := make(chan error, 1)
	if !c.post(rs, textSubmit{text: text, reply: reply}) {
		return ErrNotActive
	}
	select {
	case err := <-reply:
		return err
	case <-rs.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrNotActive
		}
	}
}

// OnEnded registers a callback run once for every session that ends after
// becoming active. Callbacks run on the session goroutine after teardown.
func (c *Controller) OnEnded(f func(Ended)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEnded = append(c.onEnded, f)
}

// Subscribe returns a channel receiving the latest Snapshot after every
// state change. Slow readers only see the most recent snapshot. The
// returned function unsubscribes and closes the channel.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
			close(ch)
		})
	}
}

// Status returns the lifecycle phase.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// StatusText returns the phase description shown to the user.
func (c *Controller) StatusText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusText
}

// SessionID returns the identifier of the current session, or "".
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ""
	}
	return c.sess.id
}

// Transcript returns a copy of the current conversation.
func (c *Controller) Transcript() []transcript.Turn { return c.transcript.All() }

// RawEvents returns the inbound messages received in this session.
func (c *Controller) RawEvents() []RawEvent { return c.raw.all() }

// LocalVolume is the microphone level in [0,1].
func (c *Controller) LocalVolume() float64 { return c.localMeter.Level() }

// RemoteVolume is the assistant audio level in [0,1].
func (c *Controller) RemoteVolume() float64 { return c.remoteMeter.Level() }

// Countdown is the visible inactivity countdown, zero when hidden.
func (c *Controller) Countdown() int { return int(c.countdown.Load()) }

// Speaking reports whether the assistant is producing a response.
func (c *Controller) Speaking() bool { return c.speaking.Load() }

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	s := Snapshot{Status: c.status, StatusText: c.statusText}
	if c.sess != nil {
		s.SessionID = c.sess.id
	}
	c.mu.Unlock()
	s.Transcript = c.transcript.All()
	s.Countdown = c.Countdown()
	s.Speaking = c.Speaking()
	return s
}

func (c *Controller) setStatusLocked(s Status, text string) {
	c.status = s
	c.statusText = text
}

func (c *Controller) activeSession() *runState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != Active {
		return nil
	}
	return c.sess
}

func (c *Controller) current(rs *runState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess == rs && c.gen == rs.gen
}

func (c *Controller) publish() {
	snap := c.Snapshot()
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (c *Controller) newWatchdog(rs *runState) *watchdog.Watchdog {
	if c.cfg.Policy == nil {
		return nil
	}
	return watchdog.New(c.cfg.Policy,
		watchdog.WithClock(c.clock),
		watchdog.WithTick(c.cfg.WatchdogTick),
		watchdog.OnCountdown(func(n int) {
			if !c.current(rs) {
				return
			}
			c.countdown.Store(int32(n))
			rs.emitter.WatchdogCountdown(n)
			c.publish()
		}),
		watchdog.OnTerminate(func() {
			c.post(rs, inactivityExpired{})
		}),
	)
}

// send writes msgs in order and stops at the first failure.
func (c *Controller) send(rs *runState, msgs ...any) error {
	for _, m := range msgs {
		if err := rs.conn.Control.Send(m); err != nil {
			return fmt.Errorf("send %s: %w", typeName(m), err)
		}
		logger.OutboundEvent(rs.ctx, typeName(m))
	}
	return nil
}

// meteredStream is the capture stream as seen by the transport: the same
// frames after they have passed the volume meter.
type meteredStream struct {
	media.Stream
	frames <-chan media.Frame
}

func (s *meteredStream) Frames() <-chan media.Frame { return s.frames }

// playRemote routes remote audio to the sink and the remote meter.
func (c *Controller) playRemote(rs *runState) {
	for {
		select {
		case <-rs.ctx.Done():
			return
		case f, ok := <-rs.conn.RemoteAudio:
			if !ok {
				return
			}
			c.remoteMeter.Observe(f)
			if c.cfg.Sink != nil {
				if err := c.cfg.Sink.Play(f); err != nil {
					logger.DebugContext(rs.ctx, "failed to play remote audio", "error", err)
				}
			}
		}
	}
}

// end tears rs down and notifies observers. It runs on the session
// goroutine and only once per session.
func (c *Controller) end(rs *runState, reason string, cause error) {
	c.mu.Lock()
	if c.sess != rs {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.status = Stopping
	c.mu.Unlock()

	turns := c.transcript.All()
	c.release(rs)
	duration := c.clock.Now().Sub(rs.started)
	c.transcript.Reset()
	c.raw.reset()
	c.countdown.Store(0)
	c.speaking.Store(false)

	c.mu.Lock()
	c.sess = nil
	c.setStatusLocked(Idle, TextStopped)
	callbacks := slices.Clone(c.onEnded)
	c.mu.Unlock()

	logger.InfoContext(rs.ctx, "Session ended", "reason", reason, "duration", duration, "turns", len(turns))
	rs.emitter.SessionEnded(reason, duration, len(turns))

	info := Ended{
		SessionID:  rs.id,
		Reason:     reason,
		Err:        cause,
		Duration:   duration,
		Transcript: turns,
	}
	for _, cb := range callbacks {
		safeCallback(rs.ctx, cb, info)
	}
	c.publish()
}

func safeCallback(ctx context.Context, cb func(Ended), info Ended) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "session ended callback panicked", "panic", r)
		}
	}()
	cb(info)
}
