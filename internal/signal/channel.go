package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/avetan/studio/internal/core"
	"github.com/avetan/studio/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

const writeWait = 5 * time.Second

// Channel maintains one logical signaling connection. Incoming messages
// are decoded and enqueued on the fold queue in delivery order; outgoing
// commands go through a buffered send channel so a slow peer never blocks
// the fold loop. Reconnection is the collaborator's problem; the channel
// only surfaces connection-state transitions.
type Channel struct {
	url       string
	readLimit int64
	sink      core.EventSink

	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func NewChannel(url string, readLimit int64, sink core.EventSink) *Channel {
	return &Channel{
		url:       url,
		readLimit: readLimit,
		sink:      sink,
		send:      make(chan []byte, 32),
	}
}

// Dial opens the connection and starts the pumps. The pumps stop when ctx
// is done or the connection drops.
func (c *Channel) Dial(ctx context.Context) error {
	c.emitState(core.ConnConnecting, nil)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.emitState(core.ConnFailed, err)
		return fmt.Errorf("dial signal channel: %w", err)
	}
	if c.readLimit > 0 {
		conn.SetReadLimit(c.readLimit)
	}
	c.conn = conn
	c.emitState(core.ConnOpen, nil)

	go c.writePump(ctx)
	go c.readPump(ctx)
	return nil
}

func (c *Channel) emitState(s core.ConnState, err error) {
	if sinkErr := c.sink.Enqueue(core.ConnStateChanged{State: s, Err: err}); sinkErr != nil {
		log.Warn().Err(sinkErr).Str("module", "signal").Msg("dropping connection-state event")
	}
}

func (c *Channel) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (c *Channel) readPump(ctx context.Context) {
	defer func() {
		log.Info().Str("module", "signal").Msg("readPump closing")
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("readPump read error")
				return
			}
			ev, err := Decode(data)
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("dropping undecodable signal")
				continue
			}
			if ev == nil {
				continue
			}
			if err := c.sink.Enqueue(ev); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("dropping signal event")
			}
		}
	}
}

// TrySend queues data without blocking; a full buffer is backpressure.
func (c *Channel) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Channel) sendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	return c.TrySend(b)
}

// SendTrackState implements core.SignalSender.
func (c *Channel) SendTrackState(kind webrtc.RTPCodecType, enabled bool) error {
	return c.sendJSON(trackStateMsg{
		Type:          "track-state",
		ParticipantID: string(domain.SelfID),
		Kind:          kind.String(),
		Enabled:       enabled,
	})
}

// SendLeave implements core.SignalSender. Best effort: the caller tears
// down regardless of delivery.
func (c *Channel) SendLeave() error {
	return c.sendJSON(participantLeftMsg{
		Type: "leave",
		From: string(domain.SelfID),
	})
}

// Close tears the connection down once and surfaces the closed state.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
	c.emitState(core.ConnClosed, nil)
}
