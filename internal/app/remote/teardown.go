package remote

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Screen/internal/core"
	"github.com/dkeye/Screen/internal/domain"
)

// HandleDisconnect runs the full teardown cascade for a dropped
// connection, then the room leave path. After it returns no registry
// references the departed connection id.
func (e *Engine) HandleDisconnect(c *core.Connection) {
	e.mu.Lock()
	e.cleanupHostSide(c)
	changed := e.cleanupClaims(c.ID)
	e.cleanupControllerSide(c)
	e.cleanupApprovals(c.ID)
	e.cleanupSetups(c)
	e.cleanupControllerSession(c)
	if changed {
		e.broadcastHosts()
	}
	e.mu.Unlock()

	e.rooms.Leave(c)
}

// HandleLeaveRoom is the lighter cascade for leave-room without a
// transport disconnect: claims, assignments and setup requests die with
// the room membership; sessions and host registrations survive.
func (e *Engine) HandleLeaveRoom(c *core.Connection) {
	e.mu.Lock()
	changed := e.cleanupClaims(c.ID)
	e.cleanupSetups(c)
	if changed {
		e.broadcastHosts()
	}
	e.mu.Unlock()

	e.rooms.Leave(c)
}

// cleanupHostSide handles a departing host agent: its active session ends,
// pending requests targeting it are cancelled, the registration is
// deleted. Caller holds mu.
func (e *Engine) cleanupHostSide(c *core.Connection) {
	for hostID, h := range e.hosts {
		if h.connID != c.ID {
			continue
		}
		if h.activeSessionID != "" {
			if s, ok := e.sessions[h.activeSessionID]; ok {
				e.endSession(s, domain.CodeHostDisconnected)
			}
		}
		for _, rec := range e.requests {
			if rec.hostConnID == c.ID {
				e.removeRequest(rec)
				e.emitError(rec.controllerConnID, domain.CodeHostDisconnected)
			}
		}
		delete(e.hosts, hostID)
		log.Info().Str("module", "app.remote").Str("host", string(hostID)).Str("conn", string(c.ID)).Msg("host unregistered on disconnect")
		e.broadcastHosts()
	}
}

// cleanupClaims drops every claim held by the connection and every
// assignment targeting it. Caller holds mu.
func (e *Engine) cleanupClaims(connID domain.ConnID) bool {
	changed := false
	for hostID, cl := range e.claims {
		if cl.connID == connID {
			delete(e.claims, hostID)
			changed = true
		}
	}
	for hostID, a := range e.assignments {
		if a.targetConnID == connID {
			e.clearAssignment(hostID)
			changed = true
		}
	}
	return changed
}

// cleanupControllerSide cancels the connection's own pending request,
// notifying the host agent. Caller holds mu.
func (e *Engine) cleanupControllerSide(c *core.Connection) {
	st := c.State()
	if st.PendingRemoteRequestID == "" {
		return
	}
	rec, ok := e.requests[st.PendingRemoteRequestID]
	if !ok || rec.controllerConnID != c.ID {
		return
	}
	e.removeRequest(rec)
	e.emitError(rec.hostConnID, domain.CodeControllerDisconnected)
}

// cleanupApprovals cancels every pending request the connection was the
// approver for, notifying each controller. Caller holds mu.
func (e *Engine) cleanupApprovals(connID domain.ConnID) {
	for _, rec := range e.requests {
		if rec.approverConnID == connID {
			e.removeRequest(rec)
			e.emitError(rec.controllerConnID, domain.CodeApproverDisconnected)
		}
	}
}

// cleanupSetups cancels the connection's outgoing setup request silently
// and every setup targeting it with a target-disconnected result. Caller
// holds mu.
func (e *Engine) cleanupSetups(c *core.Connection) {
	st := c.State()
	if st.PendingSetupRequestID != "" {
		if rec, ok := e.setups[st.PendingSetupRequestID]; ok && rec.requesterConnID == c.ID {
			e.removeSetup(rec)
		}
	}
	for _, rec := range e.setups {
		if rec.targetConnID == c.ID {
			e.removeSetup(rec)
			e.gw.EmitToConnection(rec.requesterConnID, "remote-host-setup-result", setupResultPayload{
				RequestID:       rec.id,
				Status:          "target-disconnected",
				TargetPeerID:    rec.targetPeerID,
				SuggestedHostID: rec.suggestedHostID,
			})
		}
	}
}

// cleanupControllerSession ends the session the connection drove as
// controller. Caller holds mu.
func (e *Engine) cleanupControllerSession(c *core.Connection) {
	st := c.State()
	if st.ControllerSessionID == "" {
		return
	}
	if s, ok := e.sessions[st.ControllerSessionID]; ok && s.controllerConnID == c.ID {
		e.endSession(s, domain.CodeControllerDisconnected)
	}
}
