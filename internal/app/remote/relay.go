package remote

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Screen/internal/core"
	"github.com/dkeye/Screen/internal/domain"
	"github.com/dkeye/Screen/internal/sanitize"
)

// FrameIn is the inbound remote-host-frame payload.
type FrameIn struct {
	SessionID string   `json:"sessionId"`
	Image     string   `json:"image"`
	Width     *float64 `json:"width"`
	Height    *float64 `json:"height"`
	Timestamp *float64 `json:"timestamp"`
}

type frameOut struct {
	SessionID domain.SessionID `json:"sessionId"`
	Image     string           `json:"image"`
	Width     *float64         `json:"width"`
	Height    *float64         `json:"height"`
	Timestamp float64          `json:"timestamp"`
}

type inputOut struct {
	SessionID domain.SessionID      `json:"sessionId"`
	Event     *sanitize.RemoteEvent `json:"event"`
}

// Frame relays a screen frame from the session's host to its controller.
// Only the host connection may send; invalid frames drop silently. The
// image is an opaque payload, never inspected beyond size bounds.
func (e *Engine) Frame(c *core.Connection, in FrameIn) {
	e.mu.Lock()
	s, ok := e.sessions[domain.SessionID(in.SessionID)]
	e.mu.Unlock()
	if !ok || s.hostConnID != c.ID {
		return
	}
	if in.Image == "" || len(in.Image) > domain.MaxFrameBytes {
		return
	}

	out := frameOut{
		SessionID: s.id,
		Image:     in.Image,
		Width:     sanitizeDimension(in.Width),
		Height:    sanitizeDimension(in.Height),
		Timestamp: float64(time.Now().UnixMilli()),
	}
	if in.Timestamp != nil {
		out.Timestamp = *in.Timestamp
	}

	atomic.AddUint64(&s.frames, 1)
	atomic.AddUint64(&s.frameBytes, uint64(len(in.Image)))
	e.gw.EmitToConnection(s.controllerConnID, "remote-frame", out)
}

func sanitizeDimension(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	return v
}

// Input relays a control event from the session's controller to its host.
// Only the controller connection may send; events that fail sanitization
// drop silently.
func (e *Engine) Input(c *core.Connection, rawSessionID string, rawEvent map[string]any) {
	e.mu.Lock()
	s, ok := e.sessions[domain.SessionID(rawSessionID)]
	e.mu.Unlock()
	if !ok || s.controllerConnID != c.ID {
		return
	}
	ev := sanitize.RemoteEventFrom(rawEvent)
	if ev == nil {
		return
	}
	atomic.AddUint64(&s.inputs, 1)
	e.gw.EmitToConnection(s.hostConnID, "remote-input", inputOut{SessionID: s.id, Event: ev})
}

// startDebugCounters logs per-session traffic every 2 seconds until the
// session ends. Caller holds mu.
func (e *Engine) startDebugCounters(s *session) {
	s.debugStop = make(chan struct{})
	stop := s.debugStop
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				log.Debug().Str("module", "app.remote").
					Str("session", string(s.id)).
					Uint64("frames", atomic.LoadUint64(&s.frames)).
					Uint64("frame_bytes", atomic.LoadUint64(&s.frameBytes)).
					Uint64("inputs", atomic.LoadUint64(&s.inputs)).
					Msg("session traffic")
			}
		}
	}()
}
