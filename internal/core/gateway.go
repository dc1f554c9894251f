package core

import "github.com/dkeye/Screen/internal/domain"

// Gateway is the fanout surface engines emit through, plus the
// transport-level room membership the Room Engine consults. The in-process
// implementation is synchronous: a Join/Leave is observable by
// SocketsInRoom as soon as the call returns.
type Gateway interface {
	EmitToConnection(id domain.ConnID, event string, payload any)
	EmitToRoom(roomID domain.RoomID, event string, payload any, except domain.ConnID)
	Broadcast(event string, payload any)

	JoinRoom(id domain.ConnID, roomID domain.RoomID)
	LeaveRoom(id domain.ConnID, roomID domain.RoomID)
	SocketsInRoom(roomID domain.RoomID) []domain.ConnID
}
