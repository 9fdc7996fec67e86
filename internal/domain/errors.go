package domain

import (
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

var (
	// ErrInvalidOperation marks caller errors on core invariants,
	// e.g. removing "self" or starting a recording twice. Fail fast,
	// never swallow.
	ErrInvalidOperation = errors.New("invalid operation")

	ErrParticipantIDEmpty = errors.New("participant id empty")
	ErrUnknownParticipant = errors.New("unknown participant")

	ErrRecordingActive    = fmt.Errorf("%w: recording already active", ErrInvalidOperation)
	ErrRecordingNotActive = fmt.Errorf("%w: recording not active", ErrInvalidOperation)
	ErrRemoveSelf         = fmt.Errorf("%w: cannot remove local participant", ErrInvalidOperation)
)

// DeviceAcquisitionError reports a failed capture acquisition for one
// request. Prior track state is left untouched by the caller.
type DeviceAcquisitionError struct {
	Kind     webrtc.RTPCodecType
	DeviceID string
	Err      error
}

func (e *DeviceAcquisitionError) Error() string {
	if e.DeviceID != "" {
		return fmt.Sprintf("acquire %s device %q: %v", e.Kind, e.DeviceID, e.Err)
	}
	return fmt.Sprintf("acquire %s device: %v", e.Kind, e.Err)
}

func (e *DeviceAcquisitionError) Unwrap() error { return e.Err }
