//go:build !portaudio

package media

import (
	"context"
	"errors"
	"time"
)

// PortAudioAvailable reports whether the binary was built with device
// support.
const PortAudioAvailable = false

var errNoDevices = errors.New("built without portaudio support")

type unavailableSource struct{}

func (unavailableSource) Capture(context.Context) (Stream, error) {
	return nil, &PermissionError{Device: "default input", Cause: errors.Join(ErrPermissionDenied, errNoDevices)}
}

// NewDeviceSource returns a source that always fails; rebuild with
// -tags portaudio for microphone support.
func NewDeviceSource(int, time.Duration) Source { return unavailableSource{} }

// NewDeviceSink reports that no output device is available.
func NewDeviceSink(int, time.Duration) (Sink, error) { return nil, errNoDevices }
