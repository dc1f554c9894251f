package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Screen/internal/domain"
)

// envelope is the wire shape in both directions: a named event with a
// JSON payload.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func encode(event string, payload any) ([]byte, bool) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("event", event).Msg("marshal payload")
		return nil, false
	}
	frame, err := json.Marshal(envelope{Type: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("event", event).Msg("marshal envelope")
		return nil, false
	}
	return frame, true
}

// EmitToConnection implements core.Gateway.
func (ctl *Controller) EmitToConnection(id domain.ConnID, event string, payload any) {
	ctl.mu.RLock()
	sock, ok := ctl.socks[id]
	ctl.mu.RUnlock()
	if !ok {
		return
	}
	frame, ok := encode(event, payload)
	if !ok {
		return
	}
	if err := sock.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Str("event", event).Msg("emit dropped")
	}
}

// EmitToRoom implements core.Gateway: fanout to every socket in the
// transport-level room except one.
func (ctl *Controller) EmitToRoom(roomID domain.RoomID, event string, payload any, except domain.ConnID) {
	frame, ok := encode(event, payload)
	if !ok {
		return
	}
	ctl.mu.RLock()
	members := ctl.rooms[roomID]
	targets := make([]*WsConn, 0, len(members))
	for id := range members {
		if id == except {
			continue
		}
		if sock, ok := ctl.socks[id]; ok {
			targets = append(targets, sock)
		}
	}
	ctl.mu.RUnlock()
	for _, sock := range targets {
		_ = sock.TrySend(frame)
	}
}

// Broadcast implements core.Gateway: fanout to every live socket.
func (ctl *Controller) Broadcast(event string, payload any) {
	frame, ok := encode(event, payload)
	if !ok {
		return
	}
	ctl.mu.RLock()
	targets := make([]*WsConn, 0, len(ctl.socks))
	for _, sock := range ctl.socks {
		targets = append(targets, sock)
	}
	ctl.mu.RUnlock()
	for _, sock := range targets {
		_ = sock.TrySend(frame)
	}
}

// JoinRoom implements core.Gateway. Synchronous: membership is observable
// as soon as the call returns.
func (ctl *Controller) JoinRoom(id domain.ConnID, roomID domain.RoomID) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	members, ok := ctl.rooms[roomID]
	if !ok {
		members = make(map[domain.ConnID]struct{})
		ctl.rooms[roomID] = members
	}
	members[id] = struct{}{}
}

// LeaveRoom implements core.Gateway.
func (ctl *Controller) LeaveRoom(id domain.ConnID, roomID domain.RoomID) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	if members, ok := ctl.rooms[roomID]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(ctl.rooms, roomID)
		}
	}
}

// SocketsInRoom implements core.Gateway.
func (ctl *Controller) SocketsInRoom(roomID domain.RoomID) []domain.ConnID {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	members := ctl.rooms[roomID]
	out := make([]domain.ConnID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// dropSocket removes the socket from the send path and from every
// transport-level room.
func (ctl *Controller) dropSocket(id domain.ConnID) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	delete(ctl.socks, id)
	for roomID, members := range ctl.rooms {
		delete(members, id)
		if len(members) == 0 {
			delete(ctl.rooms, roomID)
		}
	}
}
