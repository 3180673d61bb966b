//go:build portaudio

package media

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/AltairaLabs/VoiceKit/runtime/logger"
)

// PortAudioAvailable reports whether the binary was built with device
// support.
const PortAudioAvailable = true

var (
	paMu   sync.Mutex
	paRefs int
)

func acquirePortAudio() error {
	paMu.Lock()
	defer paMu.Unlock()
	if paRefs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize PortAudio: %w", err)
		}
	}
	paRefs++
	return nil
}

func releasePortAudio() {
	paMu.Lock()
	defer paMu.Unlock()
	paRefs--
	if paRefs == 0 {
		_ = portaudio.Terminate()
	}
}

// Microphone captures from the default input device.
type Microphone struct {
	SampleRate    int
	FrameDuration time.Duration
}

// NewDeviceSource returns the default microphone.
func NewDeviceSource(sampleRate int, frameDuration time.Duration) Source {
	return Microphone{SampleRate: sampleRate, FrameDuration: frameDuration}
}

// Capture opens the input device. Failure to open it is reported as a
// PermissionError.
func (m Microphone) Capture(ctx context.Context) (Stream, error) {
	rate := m.SampleRate
	if rate <= 0 {
		rate = SampleRate24kHz
	}
	dur := m.FrameDuration
	if dur <= 0 {
		dur = DefaultFrameDuration
	}
	if err := acquirePortAudio(); err != nil {
		return nil, &PermissionError{Device: "default input", Cause: errors.Join(ErrPermissionDenied, err)}
	}

	buf := make([]int16, int(int64(rate)*int64(dur)/int64(time.Second)))
	pa, err := portaudio.OpenDefaultStream(1, 0, float64(rate), len(buf), buf)
	if err != nil {
		releasePortAudio()
		return nil, &PermissionError{Device: "default input", Cause: errors.Join(ErrPermissionDenied, err)}
	}
	if err := pa.Start(); err != nil {
		_ = pa.Close()
		releasePortAudio()
		return nil, &PermissionError{Device: "default input", Cause: errors.Join(ErrPermissionDenied, err)}
	}

	s := newChanStream()
	s.stop = func() {
		_ = pa.Stop()
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer releasePortAudio()
		defer pa.Close()
		for ctx.Err() == nil {
			if err := pa.Read(); err != nil {
				select {
				case <-s.done:
					return
				default:
				}
				logger.Debug("microphone read failed", "error", err)
				time.Sleep(10 * time.Millisecond)
				continue
			}
			if !s.emit(Frame{Samples: append([]int16(nil), buf...), SampleRate: rate}) {
				return
			}
		}
	}()
	logger.Info("microphone capture started", "sample_rate", rate, "frame", dur)
	return s, nil
}

// Speaker plays frames on the default output device.
type Speaker struct {
	rate   int
	stream *portaudio.Stream
	out    []int16
	queue  chan Frame
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewDeviceSink opens the default output device at sampleRate.
func NewDeviceSink(sampleRate int, frameDuration time.Duration) (Sink, error) {
	if sampleRate <= 0 {
		sampleRate = SampleRate24kHz
	}
	if frameDuration <= 0 {
		frameDuration = 40 * time.Millisecond
	}
	if err := acquirePortAudio(); err != nil {
		return nil, err
	}
	out := make([]int16, int(int64(sampleRate)*int64(frameDuration)/int64(time.Second)))
	pa, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), len(out), out)
	if err != nil {
		releasePortAudio()
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := pa.Start(); err != nil {
		_ = pa.Close()
		releasePortAudio()
		return nil, fmt.Errorf("failed to start output stream: %w", err)
	}

	sp := &Speaker{
		rate:   sampleRate,
		stream: pa,
		out:    out,
		queue:  make(chan Frame, 500),
		done:   make(chan struct{}),
	}
	sp.wg.Add(1)
	go sp.loop()
	return sp, nil
}

// Play queues f for output, resampling when needed.
func (sp *Speaker) Play(f Frame) error {
	select {
	case <-sp.done:
		return errors.New("speaker closed")
	default:
	}
	select {
	case sp.queue <- Resample(f, sp.rate):
		return nil
	default:
		return errors.New("playback buffer full")
	}
}

func (sp *Speaker) loop() {
	defer sp.wg.Done()
	var pending []int16
	for {
		select {
		case <-sp.done:
			return
		case f := <-sp.queue:
			pending = append(pending, f.Samples...)
			for len(pending) >= len(sp.out) {
				copy(sp.out, pending[:len(sp.out)])
				if err := sp.stream.Write(); err != nil {
					logger.Debug("speaker write failed", "error", err)
				}
				pending = pending[len(sp.out):]
			}
		}
	}
}

// Close stops playback and releases the device.
func (sp *Speaker) Close() error {
	sp.once.Do(func() {
		close(sp.done)
		sp.wg.Wait()
		_ = sp.stream.Stop()
		_ = sp.stream.Close()
		releasePortAudio()
	})
	return nil
}
