package media

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultFrameDuration is the capture chunk size of the built-in sources.
const DefaultFrameDuration = 20 * time.Millisecond

// ToneSource generates a sine wave. It stands in for a microphone in
// headless runs and tests.
type ToneSource struct {
	Frequency     float64
	Amplitude     float64 // 0..1
	SampleRate    int
	FrameDuration time.Duration
}

// Capture starts generating frames.
func (t ToneSource) Capture(ctx context.Context) (Stream, error) {
	rate := t.SampleRate
	if rate <= 0 {
		rate = SampleRate24kHz
	}
	dur := t.FrameDuration
	if dur <= 0 {
		dur = DefaultFrameDuration
	}
	n := int(int64(rate) * int64(dur) / int64(time.Second))
	amp := math.Max(0, math.Min(1, t.Amplitude)) * math.MaxInt16

	var phase float64
	step := 2 * math.Pi * t.Frequency / float64(rate)
	s := newChanStream()
	s.run(ctx, dur, func() Frame {
		samples := make([]int16, n)
		for i := range samples {
			samples[i] = int16(amp * math.Sin(phase))
			phase += step
		}
		phase = math.Mod(phase, 2*math.Pi)
		return Frame{Samples: samples, SampleRate: rate}
	})
	return s, nil
}

// SilenceSource generates zeroed frames.
type SilenceSource struct {
	SampleRate    int
	FrameDuration time.Duration
}

// Capture starts generating silent frames.
func (s SilenceSource) Capture(ctx context.Context) (Stream, error) {
	return ToneSource{SampleRate: s.SampleRate, FrameDuration: s.FrameDuration}.Capture(ctx)
}

// DeniedSource always refuses access. It models a user declining the
// microphone prompt.
type DeniedSource struct{ Device string }

// Capture returns a PermissionError.
func (d DeniedSource) Capture(context.Context) (Stream, error) {
	return nil, &PermissionError{Device: d.Device, Cause: ErrPermissionDenied}
}

// DiscardSink drops every frame but counts them.
type DiscardSink struct {
	played atomic.Int64
	closed atomic.Bool
}

// Play counts f.
func (d *DiscardSink) Play(Frame) error {
	d.played.Add(1)
	return nil
}

// Played returns how many frames were received.
func (d *DiscardSink) Played() int64 { return d.played.Load() }

// Close marks the sink closed.
func (d *DiscardSink) Close() error {
	d.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (d *DiscardSink) Closed() bool { return d.closed.Load() }

// RecordingSink keeps every frame it plays.
type RecordingSink struct {
	mu     sync.Mutex
	frames []Frame
}

// Play stores f.
func (r *RecordingSink) Play(f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	return nil
}

// Frames returns a copy of the recorded frames.
func (r *RecordingSink) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

// Close is a no-op.
func (r *RecordingSink) Close() error { return nil }
