package remote

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Screen/internal/core"
	"github.com/dkeye/Screen/internal/domain"
	"github.com/dkeye/Screen/internal/sanitize"
)

type sessionPendingPayload struct {
	RequestID domain.RequestID `json:"requestId"`
	HostID    domain.HostID    `json:"hostId"`
}

type sessionRequestedPayload struct {
	RequestID       domain.RequestID `json:"requestId"`
	HostID          domain.HostID    `json:"hostId"`
	RequesterPeerID domain.PeerID    `json:"requesterPeerId"`
	RoomID          domain.RoomID    `json:"roomId"`
}

type sessionStartedPayload struct {
	SessionID domain.SessionID `json:"sessionId"`
	HostID    domain.HostID    `json:"hostId"`
}

type sessionEndedPayload struct {
	SessionID domain.SessionID `json:"sessionId"`
	HostID    domain.HostID    `json:"hostId"`
	EndedBy   string           `json:"endedBy"`
}

// SessionRequest handles remote-session-request: a room participant asks
// for control of a claimed host, starting the consent phase.
func (e *Engine) SessionRequest(c *core.Connection, rawHostID string) {
	hostID := domain.HostID(sanitize.String(rawHostID, domain.MaxHostIDLen))
	if hostID == "" {
		e.emitError(c.ID, domain.CodeHostRequired)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.hosts[hostID]
	if !ok {
		e.emitError(c.ID, domain.CodeHostNotFound)
		return
	}
	if !e.reg.Live(h.connID) {
		delete(e.hosts, hostID)
		log.Info().Str("module", "app.remote").Str("host", string(hostID)).Msg("stale host dropped on request")
		e.emitError(c.ID, domain.CodeHostOffline)
		return
	}

	// Controlling the machine you are sitting at makes a feedback loop;
	// blocked unless explicitly allowed for development.
	if !e.opts.AllowSameMachine &&
		c.NetworkID != "" && h.networkID != "" && c.NetworkID == h.networkID &&
		sanitize.IsLikelyPrivateOrLocal(c.NetworkID) {
		e.emitError(c.ID, domain.CodeSelfHostMachineBlocked)
		return
	}

	if h.activeSessionID != "" {
		e.emitError(c.ID, domain.CodeHostBusy)
		return
	}
	if e.requestForHost(hostID) != nil {
		e.emitError(c.ID, domain.CodeHostPending)
		return
	}
	st := c.State()
	if st.ControllerSessionID != "" {
		e.emitError(c.ID, domain.CodeControllerBusy)
		return
	}
	if st.PendingRemoteRequestID != "" {
		e.emitError(c.ID, domain.CodeControllerPending)
		return
	}
	if st.RoomID == "" {
		e.emitError(c.ID, domain.CodeRoomRequired)
		return
	}

	cl, ok := e.validClaim(hostID)
	if !ok || cl.roomID != st.RoomID {
		e.emitError(c.ID, domain.CodeHostOwnerUnclaimed)
		return
	}
	if cl.connID == c.ID {
		e.emitError(c.ID, domain.CodeSelfHostRequestBlocked)
		return
	}

	rec := &pendingRequest{
		id:               domain.RequestID(uuid.NewString()),
		hostID:           hostID,
		hostConnID:       h.connID,
		controllerConnID: c.ID,
		requesterPeerID:  st.PeerID,
		roomID:           st.RoomID,
		approverConnID:   cl.connID,
	}
	e.requests[rec.id] = rec
	c.Update(func(a *core.Attached) { a.PendingRemoteRequestID = rec.id })
	id := rec.id
	rec.timer = time.AfterFunc(e.opts.RequestTTL, func() { e.expireRequest(id) })

	log.Info().Str("module", "app.remote").Str("request", string(rec.id)).Str("host", string(hostID)).Str("controller", string(c.ID)).Msg("session requested")

	e.gw.EmitToConnection(c.ID, "remote-session-pending", sessionPendingPayload{RequestID: rec.id, HostID: hostID})
	e.gw.EmitToConnection(cl.connID, "remote-session-requested-ui", sessionRequestedPayload{
		RequestID:       rec.id,
		HostID:          hostID,
		RequesterPeerID: st.PeerID,
		RoomID:          st.RoomID,
	})
}

// Decision handles remote-session-decision (and the legacy
// remote-session-ui-decision). Only the approver or the host agent of the
// pending request may decide; other callers are ignored. An empty
// requestId resolves to the caller's pending request.
func (e *Engine) Decision(c *core.Connection, rawRequestID string, accepted bool, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	requestID := domain.RequestID(sanitize.String(rawRequestID, 0))
	var rec *pendingRequest
	if requestID != "" {
		rec = e.requests[requestID]
	} else {
		for _, r := range e.requests {
			if r.approverConnID == c.ID || r.hostConnID == c.ID {
				rec = r
				break
			}
		}
	}
	if rec == nil {
		return
	}
	if c.ID != rec.approverConnID && c.ID != rec.hostConnID {
		return
	}

	e.removeRequest(rec)

	if !accepted {
		msg := sanitize.String(reason, 0)
		if msg == "" {
			msg = domain.MessageFor(domain.CodeRequestRejected)
		}
		log.Info().Str("module", "app.remote").Str("request", string(rec.id)).Msg("session request rejected")
		e.emitErrorMsg(rec.controllerConnID, domain.CodeRequestRejected, msg)
		return
	}

	// Re-validate: the world may have moved during the consent phase.
	h, ok := e.hosts[rec.hostID]
	if !ok || h.connID != rec.hostConnID || !e.reg.Live(h.connID) {
		e.emitError(rec.controllerConnID, domain.CodeHostOffline)
		return
	}
	if h.activeSessionID != "" {
		e.emitError(rec.controllerConnID, domain.CodeHostBusy)
		return
	}
	controller, ok := e.reg.Get(rec.controllerConnID)
	if !ok {
		e.emitError(rec.hostConnID, domain.CodeControllerDisconnected)
		return
	}
	if controller.State().ControllerSessionID != "" {
		e.emitError(rec.hostConnID, domain.CodeControllerBusy)
		return
	}

	s := &session{
		id:               domain.SessionID(uuid.NewString()),
		hostID:           rec.hostID,
		hostConnID:       rec.hostConnID,
		controllerConnID: rec.controllerConnID,
	}
	e.sessions[s.id] = s
	h.activeSessionID = s.id
	controller.Update(func(a *core.Attached) { a.ControllerSessionID = s.id })
	if hc, ok := e.reg.Get(rec.hostConnID); ok {
		hc.Update(func(a *core.Attached) { a.HostSessionID = s.id })
	}

	log.Info().Str("module", "app.remote").Str("session", string(s.id)).Str("host", string(s.hostID)).Msg("session started")

	started := sessionStartedPayload{SessionID: s.id, HostID: s.hostID}
	e.gw.EmitToConnection(s.controllerConnID, "remote-session-started", started)
	e.gw.EmitToConnection(s.hostConnID, "remote-session-started", started)

	if e.opts.Debug {
		e.startDebugCounters(s)
	}
	e.broadcastHosts()
}

// Stop handles remote-session-stop. Resolution order: explicit session id,
// the caller's host session, the caller's controller session; with none of
// those, a pending request owned by the caller as controller is cancelled.
func (e *Engine) Stop(c *core.Connection, rawSessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := c.State()
	var s *session
	if id := domain.SessionID(sanitize.String(rawSessionID, 0)); id != "" {
		s = e.sessions[id]
	}
	if s == nil && st.HostSessionID != "" {
		s = e.sessions[st.HostSessionID]
	}
	if s == nil && st.ControllerSessionID != "" {
		s = e.sessions[st.ControllerSessionID]
	}

	if s == nil {
		if st.PendingRemoteRequestID != "" {
			if rec, ok := e.requests[st.PendingRemoteRequestID]; ok && rec.controllerConnID == c.ID {
				e.removeRequest(rec)
				log.Info().Str("module", "app.remote").Str("request", string(rec.id)).Msg("pending request cancelled by controller")
				e.emitError(rec.hostConnID, domain.CodeRequestCancelled)
			}
		}
		return
	}

	if c.ID != s.hostConnID && c.ID != s.controllerConnID {
		return
	}
	endedBy := "controller"
	if c.ID == s.hostConnID {
		endedBy = "host"
	}
	e.endSession(s, endedBy)
}

// endSession tears one session down: registry record, host busy flag,
// per-connection stamps, notifications, hosts broadcast. Idempotent
// against an already removed session. Caller holds mu.
func (e *Engine) endSession(s *session, endedBy string) {
	if _, ok := e.sessions[s.id]; !ok {
		return
	}
	delete(e.sessions, s.id)

	if h, ok := e.hosts[s.hostID]; ok && h.activeSessionID == s.id {
		h.activeSessionID = ""
	}
	if s.debugStop != nil {
		close(s.debugStop)
		s.debugStop = nil
	}

	ended := sessionEndedPayload{SessionID: s.id, HostID: s.hostID, EndedBy: endedBy}
	e.gw.EmitToConnection(s.hostConnID, "remote-session-ended", ended)
	e.gw.EmitToConnection(s.controllerConnID, "remote-session-ended", ended)

	if hc, ok := e.reg.Get(s.hostConnID); ok {
		hc.Update(func(a *core.Attached) {
			if a.HostSessionID == s.id {
				a.HostSessionID = ""
			}
		})
	}
	if cc, ok := e.reg.Get(s.controllerConnID); ok {
		cc.Update(func(a *core.Attached) {
			if a.ControllerSessionID == s.id {
				a.ControllerSessionID = ""
			}
		})
	}

	log.Info().Str("module", "app.remote").Str("session", string(s.id)).Str("host", string(s.hostID)).Str("ended_by", endedBy).Msg("session ended")
	e.broadcastHosts()
}
