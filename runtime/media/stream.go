package media

import (
	"context"
	"sync"
	"time"
)

const streamBuffer = 64

// chanStream is a Stream fed by a producer goroutine.
type chanStream struct {
	frames chan Frame
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	stop   func()
}

func newChanStream() *chanStream {
	return &chanStream{
		frames: make(chan Frame, streamBuffer),
		done:   make(chan struct{}),
	}
}

func (s *chanStream) Frames() <-chan Frame { return s.frames }

// emit delivers f unless the stream is closed. Frames are dropped when the
// consumer falls behind.
func (s *chanStream) emit(f Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.frames <- f:
	case <-s.done:
		return false
	default:
	}
	return true
}

func (s *chanStream) Close() error {
	s.once.Do(func() {
		close(s.done)
		if s.stop != nil {
			s.stop()
		}
		s.wg.Wait()
		close(s.frames)
	})
	return nil
}

// run produces frames every interval until ctx ends or the stream closes.
func (s *chanStream) run(ctx context.Context, interval time.Duration, next func() Frame) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-ticker.C:
				if !s.emit(next()) {
					return
				}
			}
		}
	}()
}
