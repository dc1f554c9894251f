// Package rooms owns the room membership registry: rooms, their
// participants and the peer<->connection bijection. It never reaches into
// the remote-control registries; the dependency runs the other way.
package rooms

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Screen/internal/core"
	"github.com/dkeye/Screen/internal/domain"
	"github.com/dkeye/Screen/internal/sanitize"
)

type room struct {
	participants []domain.PeerID
	peerToConn   map[domain.PeerID]domain.ConnID
	connToPeer   map[domain.ConnID]domain.PeerID
}

func newRoom() *room {
	return &room{
		peerToConn: make(map[domain.PeerID]domain.ConnID),
		connToPeer: make(map[domain.ConnID]domain.PeerID),
	}
}

type Engine struct {
	mu         sync.Mutex
	gw         core.Gateway
	reg        *core.Registry
	autoCreate bool
	rooms      map[domain.RoomID]*room
}

func NewEngine(gw core.Gateway, reg *core.Registry, autoCreate bool) *Engine {
	return &Engine{
		gw:         gw,
		reg:        reg,
		autoCreate: autoCreate,
		rooms:      make(map[domain.RoomID]*room),
	}
}

type roomCreatedPayload struct {
	RoomID domain.RoomID `json:"roomId"`
}

type getUsersPayload struct {
	RoomID       domain.RoomID   `json:"roomId"`
	Participants []domain.PeerID `json:"participants"`
}

type peerPayload struct {
	PeerID domain.PeerID `json:"peerId"`
}

// CreateRoom mints a room and moves the caller into it at the transport
// level. The caller is not a participant yet; it announces its peer id
// with a follow-up joined-room.
func (e *Engine) CreateRoom(c *core.Connection) {
	roomID := domain.RoomID(uuid.NewString())

	e.mu.Lock()
	e.rooms[roomID] = newRoom()
	e.gw.JoinRoom(c.ID, roomID)
	e.mu.Unlock()

	c.Update(func(a *core.Attached) { a.RoomID = roomID })

	log.Info().Str("module", "app.rooms").Str("conn", string(c.ID)).Str("room", string(roomID)).Msg("room created")
	e.gw.EmitToConnection(c.ID, "room-created", roomCreatedPayload{RoomID: roomID})
}

// Join handles joined-room: announce a peer id inside a room.
func (e *Engine) Join(c *core.Connection, rawRoomID, rawPeerID string) {
	roomID := domain.RoomID(sanitize.String(rawRoomID, 0))
	peerID := domain.PeerID(sanitize.String(rawPeerID, 0))
	if roomID == "" || peerID == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.rooms[roomID]
	if !ok {
		if !e.autoCreate || !sanitize.IsUUIDLike(string(roomID)) {
			e.gw.EmitToConnection(c.ID, "room-not-found", roomCreatedPayload{RoomID: roomID})
			return
		}
		r = newRoom()
		e.rooms[roomID] = r
		log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Msg("room auto-created on join")
	}

	e.gw.JoinRoom(c.ID, roomID)
	e.prune(roomID)

	// Detach from a previous identity before taking the new one.
	prev := c.State()
	if prev.RoomID != "" && (prev.RoomID != roomID || prev.PeerID != peerID) {
		e.removePeer(prev.RoomID, c.ID, prev.RoomID != roomID)
	}

	// A different live connection already holds this peer id: evict it.
	if oldConn, ok := r.peerToConn[peerID]; ok && oldConn != c.ID {
		delete(r.peerToConn, peerID)
		delete(r.connToPeer, oldConn)
		r.dropParticipant(peerID)
		e.gw.EmitToRoom(roomID, "user-left", peerPayload{PeerID: peerID}, c.ID)
		e.gw.LeaveRoom(oldConn, roomID)
		if old, ok := e.reg.Get(oldConn); ok {
			old.Update(func(a *core.Attached) {
				a.RoomID = ""
				a.PeerID = ""
			})
		}
		log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Str("peer", string(peerID)).Msg("evicted stale peer mapping")
	}

	if !r.hasParticipant(peerID) {
		r.participants = append(r.participants, peerID)
	}
	r.peerToConn[peerID] = c.ID
	r.connToPeer[c.ID] = peerID
	c.Update(func(a *core.Attached) {
		a.RoomID = roomID
		a.PeerID = peerID
	})

	log.Info().Str("module", "app.rooms").Str("conn", string(c.ID)).Str("room", string(roomID)).Str("peer", string(peerID)).Msg("joined room")
	e.gw.EmitToConnection(c.ID, "get-users", getUsersPayload{RoomID: roomID, Participants: append([]domain.PeerID(nil), r.participants...)})
}

// Ready fans out user-joined to the rest of the room once the caller's
// membership is consistent.
func (e *Engine) Ready(c *core.Connection) {
	st := c.State()
	if st.RoomID == "" || st.PeerID == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.rooms[st.RoomID]
	if !ok {
		return
	}
	e.prune(st.RoomID)
	if r.connToPeer[c.ID] != st.PeerID {
		return
	}
	e.gw.EmitToRoom(st.RoomID, "user-joined", peerPayload{PeerID: st.PeerID}, c.ID)
}

// Leave removes the connection's peer from its room, notifying the rest.
// Used by both the leave-room event and the disconnect cascade.
func (e *Engine) Leave(c *core.Connection) {
	st := c.State()
	if st.RoomID == "" {
		return
	}

	e.mu.Lock()
	e.removePeer(st.RoomID, c.ID, true)
	e.mu.Unlock()

	c.Update(func(a *core.Attached) {
		a.RoomID = ""
		a.PeerID = ""
	})
}

// removePeer drops the connection's membership entry in roomID, fans out
// user-left and optionally leaves the transport-level room. Caller holds mu.
func (e *Engine) removePeer(roomID domain.RoomID, connID domain.ConnID, transportLeave bool) {
	r, ok := e.rooms[roomID]
	if ok {
		if peerID, ok := r.connToPeer[connID]; ok {
			delete(r.connToPeer, connID)
			delete(r.peerToConn, peerID)
			r.dropParticipant(peerID)
			e.gw.EmitToRoom(roomID, "user-left", peerPayload{PeerID: peerID}, connID)
			log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Str("peer", string(peerID)).Msg("peer left room")
		}
	}
	if transportLeave {
		e.gw.LeaveRoom(connID, roomID)
	}
	e.prune(roomID)
}

// prune re-establishes the bijection invariant after transport races and
// deletes the room once both the participant set and the transport-level
// membership are empty. The conjunction protects the window between
// create-room and the creator's joined-room. Caller holds mu.
func (e *Engine) prune(roomID domain.RoomID) {
	r, ok := e.rooms[roomID]
	if !ok {
		return
	}

	for peerID, connID := range r.peerToConn {
		if !e.reg.Live(connID) || r.connToPeer[connID] != peerID {
			delete(r.peerToConn, peerID)
		}
	}
	for connID, peerID := range r.connToPeer {
		if r.peerToConn[peerID] != connID {
			delete(r.connToPeer, connID)
		}
	}

	kept := r.participants[:0]
	seen := make(map[domain.PeerID]bool, len(r.participants))
	for _, peerID := range r.participants {
		if seen[peerID] {
			continue
		}
		seen[peerID] = true
		if _, ok := r.peerToConn[peerID]; ok {
			kept = append(kept, peerID)
		}
	}
	r.participants = kept

	if len(r.participants) == 0 && len(e.gw.SocketsInRoom(roomID)) == 0 {
		delete(e.rooms, roomID)
		log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Msg("room deleted")
	}
}

func (r *room) hasParticipant(peerID domain.PeerID) bool {
	for _, p := range r.participants {
		if p == peerID {
			return true
		}
	}
	return false
}

func (r *room) dropParticipant(peerID domain.PeerID) {
	for i, p := range r.participants {
		if p == peerID {
			r.participants = append(r.participants[:i], r.participants[i+1:]...)
			return
		}
	}
}

// Participants returns the join-ordered peer ids of a room.
func (e *Engine) Participants(roomID domain.RoomID) []domain.PeerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rooms[roomID]
	if !ok {
		return nil
	}
	return append([]domain.PeerID(nil), r.participants...)
}

// PeerConn resolves a peer id to its connection inside a room.
func (e *Engine) PeerConn(roomID domain.RoomID, peerID domain.PeerID) (domain.ConnID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rooms[roomID]
	if !ok {
		return "", false
	}
	connID, ok := r.peerToConn[peerID]
	return connID, ok
}

// Exists reports whether a room is currently registered.
func (e *Engine) Exists(roomID domain.RoomID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.rooms[roomID]
	return ok
}
