// Package vad computes a boolean speaking signal from local audio energy.
// Remote speaking state arrives via signaling, never from local analysis.
package vad

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avetan/studio/internal/core"
	"github.com/avetan/studio/internal/domain"
)

const (
	// DefaultInterval throttles analysis regardless of how fast the
	// capture source offers frames.
	DefaultInterval = 100 * time.Millisecond
	// DefaultThreshold is the mean spectrum magnitude (0..255 scale)
	// above which the local participant counts as speaking. No
	// hysteresis: borderline levels may flicker.
	DefaultThreshold = 25.0
)

// Monitor samples the local audio spectrum on a fixed period and emits
// speaking transitions for the local participant.
type Monitor struct {
	src       core.SpectrumSource
	interval  time.Duration
	threshold float64
	sink      core.EventSink

	speaking bool
}

func NewMonitor(src core.SpectrumSource, interval time.Duration, threshold float64, sink core.EventSink) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Monitor{src: src, interval: interval, threshold: threshold, sink: sink}
}

// Run samples until ctx is done. Sampling stops within one period of
// cancellation so stale speaking state is never reported after the track
// is disabled or replaced.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "vad").Msg("monitor done")
			return
		case <-ticker.C:
			frame, err := m.src.Spectrum()
			if err != nil {
				log.Debug().Err(err).Str("module", "vad").Msg("spectrum unavailable, stopping")
				return
			}
			m.sample(frame)
		}
	}
}

func (m *Monitor) sample(frame []byte) {
	speaking := mean(frame) > m.threshold
	if speaking == m.speaking {
		return
	}
	m.speaking = speaking
	if err := m.sink.Enqueue(core.SpeakingChanged{ParticipantID: domain.SelfID, Speaking: speaking}); err != nil {
		log.Warn().Err(err).Str("module", "vad").Msg("dropping speaking transition")
	}
}

func mean(frame []byte) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, v := range frame {
		sum += float64(v)
	}
	return sum / float64(len(frame))
}
