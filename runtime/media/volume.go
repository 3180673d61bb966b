package media

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultVolumeInterval is how often a VolumeMeter samples its input.
const DefaultVolumeInterval = 100 * time.Millisecond

// RMS returns the root-mean-square amplitude of samples scaled to [0,1].
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768
		sum += v * v
	}
	return math.Min(1, math.Sqrt(sum/float64(len(samples))))
}

// VolumeMeter tracks the amplitude of an audio stream for display. Observe
// feeds it frames; while started it samples the latest frame every interval
// and Level returns the last sample. A stopped meter can be started again.
type VolumeMeter struct {
	interval time.Duration

	mu     sync.Mutex
	latest []int16
	cancel context.CancelFunc
	done   chan struct{}

	level atomic.Uint64
}

// NewVolumeMeter creates a stopped meter. A non-positive interval means
// DefaultVolumeInterval.
func NewVolumeMeter(interval time.Duration) *VolumeMeter {
	if interval <= 0 {
		interval = DefaultVolumeInterval
	}
	return &VolumeMeter{interval: interval}
}

// Observe records f as the most recent audio.
func (m *VolumeMeter) Observe(f Frame) {
	m.mu.Lock()
	m.latest = append(m.latest[:0], f.Samples...)
	m.mu.Unlock()
}

// Sample computes the level of the most recent audio now.
func (m *VolumeMeter) Sample() float64 {
	m.mu.Lock()
	v := RMS(m.latest)
	m.mu.Unlock()
	m.level.Store(math.Float64bits(v))
	return v
}

// Level returns the last sampled amplitude in [0,1].
func (m *VolumeMeter) Level() float64 {
	return math.Float64frombits(m.level.Load())
}

// Start begins periodic sampling. onSample, when non-nil, receives each
// value. Starting a running meter is a no-op.
func (m *VolumeMeter) Start(onSample func(float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.cancel, m.done = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				v := m.Sample()
				if onSample != nil {
					onSample(v)
				}
			}
		}
	}()
}

// Running reports whether the meter is sampling.
func (m *VolumeMeter) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// Stop halts sampling and resets the level to zero.
func (m *VolumeMeter) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.latest = m.latest[:0]
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	m.level.Store(0)
}

// Tee forwards every frame from in to the returned channel after passing it
// to each tap. The output closes when in closes or ctx ends.
func Tee(ctx context.Context, in <-chan Frame, taps ...func(Frame)) <-chan Frame {
	out := make(chan Frame, streamBuffer)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-in:
				if !ok {
					return
				}
				for _, tap := range taps {
					tap(f)
				}
				select {
				case out <- f:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
