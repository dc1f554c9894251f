// Package domain contains entity identifiers and shared limits, no logic.
package domain

type (
	ConnID    string
	RoomID    string
	PeerID    string
	HostID    string
	RequestID string
	SessionID string
)

const (
	// MaxHostIDLen bounds a registered host identifier after trimming.
	MaxHostIDLen = 64
	// MaxStringLen is the default cap for sanitized user strings.
	MaxStringLen = 128
	// MaxKeyLen bounds key/code fields of keyboard events.
	MaxKeyLen = 64
	// MaxFrameBytes bounds the image payload of a relayed frame.
	MaxFrameBytes = 6 * 1000 * 1000
	// MaxPayloadBytes is the transport-level read limit per message.
	MaxPayloadBytes = 8 << 20
)

// LoopbackNetworkID is the collapsed network identity for all loopback
// origins. Multiple local agents deliberately share it during development.
const LoopbackNetworkID = "loopback-local"
