package devices

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/avetan/studio/internal/core"
)

const (
	syntheticFrameInterval = 20 * time.Millisecond
	spectrumBins           = 32
)

// SyntheticEnumerator is the built-in capture backend for development and
// tests: a fixed device set and silent, paced sources. Real platform
// backends implement core.DeviceEnumerator out of tree.
type SyntheticEnumerator struct{}

func NewSyntheticEnumerator() *SyntheticEnumerator { return &SyntheticEnumerator{} }

func (e *SyntheticEnumerator) Enumerate(_ context.Context) (core.DeviceList, error) {
	return core.DeviceList{
		AudioInputs:  []core.Device{{ID: "synthetic-mic", Label: "Synthetic Microphone", Kind: core.DeviceAudioInput}},
		AudioOutputs: []core.Device{{ID: "synthetic-spk", Label: "Synthetic Speaker", Kind: core.DeviceAudioOutput}},
		VideoInputs:  []core.Device{{ID: "synthetic-cam", Label: "Synthetic Camera", Kind: core.DeviceVideoInput}},
	}, nil
}

func (e *SyntheticEnumerator) Acquire(ctx context.Context, kind webrtc.RTPCodecType, _ string) (core.MediaSource, error) {
	capability := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	if kind == webrtc.RTPCodecTypeVideo {
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	}
	id := kind.String() + "-" + uuid.NewString()
	track, err := webrtc.NewTrackLocalStaticRTP(capability, id, "synthetic")
	if err != nil {
		return nil, err
	}
	src := &syntheticSource{
		track:  track,
		pacer:  time.NewTicker(syntheticFrameInterval),
		closed: make(chan struct{}),
	}
	if ctx.Err() != nil {
		_ = src.Close()
		return nil, ctx.Err()
	}
	return src, nil
}

// syntheticSource emits empty RTP packets at frame pace and a silent
// spectrum. It exists so the rest of the pipeline can run end to end
// without platform capture.
type syntheticSource struct {
	track *webrtc.TrackLocalStaticRTP
	pacer *time.Ticker

	mu     sync.Mutex
	seq    uint16
	ts     uint32
	closed chan struct{}
	once   sync.Once
}

func (s *syntheticSource) Track() *webrtc.TrackLocalStaticRTP { return s.track }

func (s *syntheticSource) ReadRTP() (*rtp.Packet, error) {
	select {
	case <-s.closed:
		return nil, io.EOF
	case <-s.pacer.C:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.ts += 960
	return &rtp.Packet{
		Header:  rtp.Header{Version: 2, SequenceNumber: s.seq, Timestamp: s.ts},
		Payload: make([]byte, 0),
	}, nil
}

// Spectrum implements core.SpectrumSource: silence, all bins zero.
func (s *syntheticSource) Spectrum() ([]byte, error) {
	select {
	case <-s.closed:
		return nil, io.EOF
	default:
	}
	return make([]byte, spectrumBins), nil
}

func (s *syntheticSource) Close() error {
	s.once.Do(func() {
		s.pacer.Stop()
		close(s.closed)
	})
	return nil
}
