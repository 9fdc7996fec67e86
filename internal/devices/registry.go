// Package devices tracks available media endpoints and their hot-swap
// events, and resolves devices into capture handles.
package devices

import (
	"context"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/avetan/studio/internal/core"
	"github.com/avetan/studio/internal/domain"
)

// Registry polls a platform enumerator, diffs the device set and emits
// change events onto the fold queue. It is a producer, never a mutator.
type Registry struct {
	enum     core.DeviceEnumerator
	interval time.Duration
	sink     core.EventSink

	mu   sync.RWMutex
	last core.DeviceList
}

func NewRegistry(enum core.DeviceEnumerator, interval time.Duration, sink core.EventSink) *Registry {
	return &Registry{enum: enum, interval: interval, sink: sink}
}

// List returns a fresh snapshot of the platform device set.
func (r *Registry) List(ctx context.Context) (core.DeviceList, error) {
	list, err := r.enum.Enumerate(ctx)
	if err != nil {
		return core.DeviceList{}, err
	}
	r.mu.Lock()
	r.last = list
	r.mu.Unlock()
	return list, nil
}

// Watch polls for device-set changes until ctx is done.
func (r *Registry) Watch(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "devices").Msg("watch loop done")
			return
		case <-ticker.C:
			list, err := r.enum.Enumerate(ctx)
			if err != nil {
				log.Warn().Err(err).Str("module", "devices").Msg("enumerate failed")
				continue
			}
			r.mu.Lock()
			changed := !sameDevices(r.last, list)
			r.last = list
			r.mu.Unlock()
			if changed {
				log.Info().Str("module", "devices").Msg("device set changed")
				if err := r.sink.Enqueue(core.DevicesChanged{Devices: list}); err != nil {
					log.Warn().Err(err).Str("module", "devices").Msg("dropping device change event")
				}
			}
		}
	}
}

// Acquire resolves a device into an exclusively owned capture handle. If
// ctx is canceled while the acquisition is in flight, the handle is
// released rather than attached to stale state.
func (r *Registry) Acquire(ctx context.Context, kind webrtc.RTPCodecType, deviceID string) (core.MediaSource, error) {
	src, err := r.enum.Acquire(ctx, kind, deviceID)
	if err != nil {
		return nil, &domain.DeviceAcquisitionError{Kind: kind, DeviceID: deviceID, Err: err}
	}
	if ctx.Err() != nil {
		if closeErr := src.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Str("module", "devices").Msg("releasing source acquired after cancel")
		}
		return nil, ctx.Err()
	}
	return src, nil
}

func sameDevices(a, b core.DeviceList) bool {
	return sameSet(a.AudioInputs, b.AudioInputs) &&
		sameSet(a.AudioOutputs, b.AudioOutputs) &&
		sameSet(a.VideoInputs, b.VideoInputs)
}

func sameSet(a, b []core.Device) bool {
	if len(a) != len(b) {
		return false
	}
	ids := make(map[string]struct{}, len(a))
	for _, d := range a {
		ids[d.ID] = struct{}{}
	}
	for _, d := range b {
		if _, ok := ids[d.ID]; !ok {
			return false
		}
	}
	return true
}
