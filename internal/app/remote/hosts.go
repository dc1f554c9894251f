package remote

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Screen/internal/core"
	"github.com/dkeye/Screen/internal/domain"
	"github.com/dkeye/Screen/internal/sanitize"
)

type hostRegisteredPayload struct {
	HostID domain.HostID `json:"hostId"`
}

type hostClaimedPayload struct {
	HostID domain.HostID `json:"hostId"`
	RoomID domain.RoomID `json:"roomId"`
	Auto   bool          `json:"auto,omitempty"`
}

// HostListEntry is one row of the personalized hosts list.
type HostListEntry struct {
	HostID domain.HostID `json:"hostId"`
	Busy   bool          `json:"busy"`
	// Ownership is computed per viewer: unclaimed, you or other.
	Ownership string `json:"ownership"`
}

type hostsListPayload struct {
	Hosts []HostListEntry `json:"hosts"`
}

// Register handles remote-host-register from a host agent connection.
func (e *Engine) Register(c *core.Connection, rawHostID string) {
	hostID := domain.HostID(sanitize.String(rawHostID, domain.MaxHostIDLen))
	if hostID == "" {
		e.emitError(c.ID, domain.CodeHostRequired)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if h, ok := e.hosts[hostID]; ok && h.connID != c.ID {
		if e.reg.Live(h.connID) {
			e.emitError(c.ID, domain.CodeHostIDInUse)
			return
		}
		// Stale mapping to a dead connection: replaced below.
		log.Info().Str("module", "app.remote").Str("host", string(hostID)).Msg("replacing stale host registration")
	}

	e.hosts[hostID] = &host{id: hostID, connID: c.ID, networkID: c.NetworkID}
	c.Update(func(a *core.Attached) { a.RemoteHostID = hostID })
	log.Info().Str("module", "app.remote").Str("host", string(hostID)).Str("conn", string(c.ID)).Msg("host registered")

	// A pre-authorized setup assignment claims the host on the target's
	// behalf the moment the agent comes online.
	if a, ok := e.liveAssignment(hostID); ok {
		if target, tok := e.reg.Get(a.targetConnID); tok && target.State().RoomID == a.roomID {
			e.claims[hostID] = &claim{connID: a.targetConnID, roomID: a.roomID}
			e.gw.EmitToConnection(a.targetConnID, "remote-host-claimed", hostClaimedPayload{HostID: hostID, RoomID: a.roomID, Auto: true})
			e.clearAssignment(hostID)
			log.Info().Str("module", "app.remote").Str("host", string(hostID)).Str("conn", string(a.targetConnID)).Msg("host auto-claimed from assignment")
		}
	}

	e.gw.EmitToConnection(c.ID, "remote-host-registered", hostRegisteredPayload{HostID: hostID})
	e.broadcastHosts()
}

// HostsRequest emits the personalized hosts list to the requester only.
func (e *Engine) HostsRequest(c *core.Connection) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gw.EmitToConnection(c.ID, "remote-hosts-list", hostsListPayload{Hosts: e.listFor(c)})
}

// SendHostsList pushes the current list to a freshly admitted connection.
func (e *Engine) SendHostsList(c *core.Connection) {
	e.HostsRequest(c)
}

// validClaim returns the claim for hostID after garbage-collecting it when
// its holder is offline or no longer inside the claim's room. Caller
// holds mu.
func (e *Engine) validClaim(hostID domain.HostID) (*claim, bool) {
	cl, ok := e.claims[hostID]
	if !ok {
		return nil, false
	}
	holder, live := e.reg.Get(cl.connID)
	if !live || holder.State().RoomID != cl.roomID {
		delete(e.claims, hostID)
		log.Info().Str("module", "app.remote").Str("host", string(hostID)).Msg("stale claim dropped")
		return nil, false
	}
	return cl, true
}

// listFor builds the hosts list from the viewer's perspective, sorted by
// host id. Caller holds mu.
func (e *Engine) listFor(viewer *core.Connection) []HostListEntry {
	viewerRoom := viewer.State().RoomID
	out := make([]HostListEntry, 0, len(e.hosts))
	for hostID, h := range e.hosts {
		entry := HostListEntry{
			HostID:    hostID,
			Busy:      h.activeSessionID != "",
			Ownership: "unclaimed",
		}
		if cl, ok := e.validClaim(hostID); ok && viewerRoom != "" && cl.roomID == viewerRoom {
			if cl.connID == viewer.ID {
				entry.Ownership = "you"
			} else {
				entry.Ownership = "other"
			}
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HostID < out[j].HostID })
	return out
}

// broadcastHosts sends every live connection its personalized list.
// Caller holds mu.
func (e *Engine) broadcastHosts() {
	for _, c := range e.reg.All() {
		e.gw.EmitToConnection(c.ID, "remote-hosts-list", hostsListPayload{Hosts: e.listFor(c)})
	}
}
