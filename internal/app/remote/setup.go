package remote

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Screen/internal/core"
	"github.com/dkeye/Screen/internal/domain"
	"github.com/dkeye/Screen/internal/sanitize"
)

type setupPendingPayload struct {
	RequestID       domain.RequestID `json:"requestId"`
	TargetPeerID    domain.PeerID    `json:"targetPeerId"`
	SuggestedHostID domain.HostID    `json:"suggestedHostId"`
}

type setupRequestedPayload struct {
	RequestID       domain.RequestID `json:"requestId"`
	RequesterPeerID domain.PeerID    `json:"requesterPeerId"`
	SuggestedHostID domain.HostID    `json:"suggestedHostId"`
}

type setupResultPayload struct {
	RequestID       domain.RequestID `json:"requestId"`
	Status          string           `json:"status"`
	TargetPeerID    domain.PeerID    `json:"targetPeerId"`
	SuggestedHostID domain.HostID    `json:"suggestedHostId"`
}

// SetupRequest handles remote-host-setup-request: one participant
// delegates to another the job of bringing a host agent online under a
// suggested id, pre-authorizing the target to claim it.
func (e *Engine) SetupRequest(c *core.Connection, rawTargetPeerID string) {
	st := c.State()
	if st.RoomID == "" {
		e.emitError(c.ID, domain.CodeRoomRequired)
		return
	}
	if st.PendingSetupRequestID != "" {
		e.emitError(c.ID, domain.CodeControllerPending)
		return
	}

	others := make([]domain.PeerID, 0, 4)
	for _, p := range e.rooms.Participants(st.RoomID) {
		if p != st.PeerID {
			others = append(others, p)
		}
	}
	if len(others) == 0 {
		e.emitError(c.ID, domain.CodeParticipantNotFound)
		return
	}

	targetPeerID := domain.PeerID(sanitize.String(rawTargetPeerID, 0))
	if targetPeerID == "" {
		if len(others) > 1 {
			e.emitError(c.ID, domain.CodeParticipantRequired)
			return
		}
		targetPeerID = others[0]
	} else {
		found := false
		for _, p := range others {
			if p == targetPeerID {
				found = true
				break
			}
		}
		if !found {
			e.emitError(c.ID, domain.CodeParticipantNotFound)
			return
		}
	}

	targetConnID, ok := e.rooms.PeerConn(st.RoomID, targetPeerID)
	if !ok || !e.reg.Live(targetConnID) {
		e.emitError(c.ID, domain.CodeParticipantNotFound)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rec := &pendingSetup{
		id:              domain.RequestID(uuid.NewString()),
		requesterConnID: c.ID,
		requesterPeerID: st.PeerID,
		targetConnID:    targetConnID,
		targetPeerID:    targetPeerID,
		roomID:          st.RoomID,
		suggestedHostID: domain.HostID(sanitize.BuildSuggestedHostID(string(targetPeerID))),
	}
	e.setups[rec.id] = rec
	c.Update(func(a *core.Attached) { a.PendingSetupRequestID = rec.id })
	if target, ok := e.reg.Get(targetConnID); ok {
		target.Update(func(a *core.Attached) { a.IncomingSetupRequestID = rec.id })
	}
	id := rec.id
	rec.timer = time.AfterFunc(e.opts.SetupTTL, func() { e.expireSetup(id) })

	log.Info().Str("module", "app.remote").Str("request", string(rec.id)).Str("target", string(targetPeerID)).Str("suggested", string(rec.suggestedHostID)).Msg("host-setup requested")

	e.gw.EmitToConnection(c.ID, "remote-host-setup-pending", setupPendingPayload{
		RequestID:       rec.id,
		TargetPeerID:    targetPeerID,
		SuggestedHostID: rec.suggestedHostID,
	})
	e.gw.EmitToConnection(targetConnID, "remote-host-setup-requested", setupRequestedPayload{
		RequestID:       rec.id,
		RequesterPeerID: st.PeerID,
		SuggestedHostID: rec.suggestedHostID,
	})
}

// SetupDecision handles remote-host-setup-decision. Only the target of the
// pending request may decide; anything else is ignored.
func (e *Engine) SetupDecision(c *core.Connection, rawRequestID string, accepted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.setups[domain.RequestID(sanitize.String(rawRequestID, 0))]
	if !ok || rec.targetConnID != c.ID {
		return
	}
	e.removeSetup(rec)

	if !accepted {
		log.Info().Str("module", "app.remote").Str("request", string(rec.id)).Msg("host-setup rejected")
		e.gw.EmitToConnection(rec.requesterConnID, "remote-host-setup-result", setupResultPayload{
			RequestID:       rec.id,
			Status:          "rejected",
			TargetPeerID:    rec.targetPeerID,
			SuggestedHostID: rec.suggestedHostID,
		})
		return
	}

	e.clearAssignment(rec.suggestedHostID)
	a := &assignment{
		targetConnID: rec.targetConnID,
		roomID:       rec.roomID,
		expiresAt:    e.now().Add(e.opts.AssignmentTTL),
	}
	hostID := rec.suggestedHostID
	a.timer = time.AfterFunc(e.opts.AssignmentTTL, func() { e.expireAssignment(hostID) })
	e.assignments[hostID] = a
	log.Info().Str("module", "app.remote").Str("host", string(hostID)).Str("conn", string(rec.targetConnID)).Msg("host-setup assignment created")

	// The host agent may already be online; claim it for the target now,
	// but only while the target is still in the request's room.
	autoClaimed := false
	if h, ok := e.hosts[hostID]; ok && e.reg.Live(h.connID) {
		if target, tok := e.reg.Get(rec.targetConnID); tok && target.State().RoomID == rec.roomID {
			e.claims[hostID] = &claim{connID: rec.targetConnID, roomID: rec.roomID}
			e.clearAssignment(hostID)
			e.gw.EmitToConnection(rec.targetConnID, "remote-host-claimed", hostClaimedPayload{HostID: hostID, RoomID: rec.roomID, Auto: true})
			autoClaimed = true
			log.Info().Str("module", "app.remote").Str("host", string(hostID)).Msg("host auto-claimed on setup accept")
		}
	}

	e.gw.EmitToConnection(rec.requesterConnID, "remote-host-setup-result", setupResultPayload{
		RequestID:       rec.id,
		Status:          "accepted",
		TargetPeerID:    rec.targetPeerID,
		SuggestedHostID: rec.suggestedHostID,
	})
	if autoClaimed {
		e.broadcastHosts()
	}
}
