package core

import (
	"context"
	"errors"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/avetan/studio/internal/domain"
)

// ErrQueueFull reports backpressure on the fold queue.
var ErrQueueFull = errors.New("event queue full")

// EventSink accepts events for the single-consumer fold loop.
// Producers must tolerate a full queue (ErrQueueFull) rather than block.
type EventSink interface {
	Enqueue(Event) error
}

// SignalSender sends outbound control messages over the signaling channel.
// Owned by the signal adapter; the adapter must Close() the transport.
type SignalSender interface {
	SendTrackState(kind webrtc.RTPCodecType, enabled bool) error
	SendLeave() error
}

// MediaSource is one acquired capture or subscription handle, exclusively
// owned by a single Track. Replacement must close the old source only
// after the new one is live.
type MediaSource interface {
	// Track is the local RTP track backing this source.
	Track() *webrtc.TrackLocalStaticRTP
	// ReadRTP blocks for the next packet; consumed by the recorder and
	// media-relay collaborators.
	ReadRTP() (*rtp.Packet, error)
	Close() error
}

// SpectrumSource exposes a frequency-domain frame of the current audio,
// magnitudes on a 0..255 scale. Audio media sources implement it.
type SpectrumSource interface {
	Spectrum() ([]byte, error)
}

// Recorder is the external collaborator that persists a participant's
// media to storage. All methods are per participant; partial failures
// never abort the session.
type Recorder interface {
	StartRecording(ctx context.Context, id domain.ParticipantID, src MediaSource) (RecorderHandle, error)
	StopRecording(ctx context.Context, id domain.ParticipantID) error
}

type RecorderHandle string

// DeviceKind distinguishes the three endpoint classes the platform exposes.
type DeviceKind string

const (
	DeviceAudioInput  DeviceKind = "audioinput"
	DeviceAudioOutput DeviceKind = "audiooutput"
	DeviceVideoInput  DeviceKind = "videoinput"
)

type Device struct {
	ID    string     `json:"id"`
	Label string     `json:"label"`
	Kind  DeviceKind `json:"kind"`
}

type DeviceList struct {
	AudioInputs  []Device `json:"audio_inputs"`
	AudioOutputs []Device `json:"audio_outputs"`
	VideoInputs  []Device `json:"video_inputs"`
}

// DeviceEnumerator is the platform capture backend. Acquire must honor
// ctx: a canceled acquisition releases anything it grabbed.
type DeviceEnumerator interface {
	Enumerate(ctx context.Context) (DeviceList, error)
	Acquire(ctx context.Context, kind webrtc.RTPCodecType, deviceID string) (MediaSource, error)
}
