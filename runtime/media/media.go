// Package media captures local audio, plays remote audio and samples
// volume levels for display. Audio is carried as mono PCM16 frames.
package media

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Sample rates used by the realtime endpoints.
const (
	SampleRate8kHz  = 8000
	SampleRate16kHz = 16000
	SampleRate24kHz = 24000
)

// ErrPermissionDenied is the cause of a PermissionError when the user (or
// the OS) refuses access to the capture device.
var ErrPermissionDenied = errors.New("microphone access denied")

// PermissionError reports that local audio could not be captured.
type PermissionError struct {
	Device string
	Cause  error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("cannot capture audio from %s: %v", e.Device, e.Cause)
}

func (e *PermissionError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrPermissionDenied) match any PermissionError.
func (e *PermissionError) Is(target error) bool { return target == ErrPermissionDenied }

// Frame is a chunk of mono PCM16 audio.
type Frame struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the playback length of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// Bytes encodes the samples as little-endian PCM16.
func (f Frame) Bytes() []byte {
	out := make([]byte, len(f.Samples)*2)
	for i, s := range f.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s)) //nolint:gosec // PCM16 reinterpretation
	}
	return out
}

// FrameFromBytes decodes little-endian PCM16. A trailing odd byte is
// dropped.
func FrameFromBytes(data []byte, sampleRate int) Frame {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:])) //nolint:gosec // PCM16 reinterpretation
	}
	return Frame{Samples: samples, SampleRate: sampleRate}
}

// Stream is a live sequence of captured frames. Frames is closed once
// Close returns.
type Stream interface {
	Frames() <-chan Frame
	Close() error
}

// Source opens capture streams.
type Source interface {
	Capture(ctx context.Context) (Stream, error)
}

// Sink plays frames.
type Sink interface {
	Play(Frame) error
	Close() error
}
