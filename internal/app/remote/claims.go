package remote

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Screen/internal/core"
	"github.com/dkeye/Screen/internal/domain"
	"github.com/dkeye/Screen/internal/sanitize"
)

// Claim handles remote-host-claim: an in-room participant asserts
// ownership of a host id, becoming the approver for session requests
// targeting it.
func (e *Engine) Claim(c *core.Connection, rawHostID string) {
	hostID := domain.HostID(sanitize.String(rawHostID, domain.MaxHostIDLen))
	if hostID == "" {
		e.emitError(c.ID, domain.CodeHostRequired)
		return
	}
	st := c.State()
	if st.RoomID == "" {
		e.emitError(c.ID, domain.CodeRoomRequired)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// An active setup assignment binds the claim to its target.
	if a, ok := e.liveAssignment(hostID); ok {
		if a.roomID != st.RoomID || a.targetConnID != c.ID {
			e.emitError(c.ID, domain.CodeHostClaimAssignedOther)
			return
		}
	}

	h, ok := e.hosts[hostID]
	if !ok {
		e.emitError(c.ID, domain.CodeHostOffline)
		return
	}
	if !e.reg.Live(h.connID) {
		delete(e.hosts, hostID)
		log.Info().Str("module", "app.remote").Str("host", string(hostID)).Msg("stale host dropped on claim")
		e.emitError(c.ID, domain.CodeHostOffline)
		return
	}

	// The claiming human must share a network origin with the host agent.
	if c.NetworkID != "" && h.networkID != "" && c.NetworkID != h.networkID {
		e.emitError(c.ID, domain.CodeHostClaimOwnerMismatch)
		return
	}

	if cl, ok := e.validClaim(hostID); ok && cl.connID != c.ID && cl.roomID == st.RoomID {
		e.emitError(c.ID, domain.CodeHostClaimedByOther)
		return
	}

	e.claims[hostID] = &claim{connID: c.ID, roomID: st.RoomID}
	e.clearAssignment(hostID)
	log.Info().Str("module", "app.remote").Str("host", string(hostID)).Str("conn", string(c.ID)).Str("room", string(st.RoomID)).Msg("host claimed")

	e.gw.EmitToConnection(c.ID, "remote-host-claimed", hostClaimedPayload{HostID: hostID, RoomID: st.RoomID})
	e.broadcastHosts()
}
