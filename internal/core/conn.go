package core

import (
	"sync"
	"time"

	"github.com/dkeye/Screen/internal/domain"
)

// Attached is the engine-owned scratch state bound to one connection.
// Empty string means unset.
type Attached struct {
	RoomID                 domain.RoomID
	PeerID                 domain.PeerID
	RemoteHostID           domain.HostID
	ControllerSessionID    domain.SessionID
	HostSessionID          domain.SessionID
	PendingRemoteRequestID domain.RequestID
	PendingSetupRequestID  domain.RequestID
	IncomingSetupRequestID domain.RequestID
}

// Connection is the unit of client identity. The transport adapter creates
// it at handshake time; engines mutate the attached state through Update.
type Connection struct {
	ID        domain.ConnID
	ArrivedAt time.Time
	// NetworkID is the normalized remote origin: first forwarded-for entry
	// or the peer address host, loopback collapsed to loopback-local.
	NetworkID string

	mu       sync.Mutex
	attached Attached
}

func NewConnection(id domain.ConnID, networkID string) *Connection {
	return &Connection{ID: id, ArrivedAt: time.Now(), NetworkID: networkID}
}

// State returns a copy of the attached state.
func (c *Connection) State() Attached {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}

// Update mutates the attached state atomically.
func (c *Connection) Update(fn func(*Attached)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.attached)
}
