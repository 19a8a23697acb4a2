package media

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceBusy       = errors.New("device kind already has an active stream")
	ErrNoAudioCaptured  = errors.New("recording stopped with no captured audio")
	ErrNotCamera        = errors.New("stream is not a camera stream")
	ErrNotMicrophone    = errors.New("stream is not a microphone stream")
	ErrRecorderFinished = errors.New("recorder already stopped")
)

// PermissionError means the OS or browser refused access to the device.
type PermissionError struct {
	Kind   Kind
	Reason string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied for %s: %s", e.Kind, e.Reason)
}

// DeviceError means the device is absent, already claimed elsewhere, or
// failed while streaming.
type DeviceError struct {
	Kind   Kind
	Reason string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s device error: %s", e.Kind, e.Reason)
}

// IsPermission checks if error represents a denied device permission
func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// IsDevice checks if error represents a device failure
func IsDevice(err error) bool {
	if errors.Is(err, ErrDeviceBusy) {
		return true
	}
	var de *DeviceError
	return errors.As(err, &de)
}
