// Package sanitize holds pure validators and normalizers for user-supplied
// fields. Nothing here touches registries or transport.
package sanitize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/dkeye/Screen/internal/domain"
)

var (
	uuidRe   = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	hostIDRe = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

// String trims v and truncates it to maxLen bytes. Non-string
// inputs normalize to the empty string. maxLen <= 0 applies the default cap.
func String(v any, maxLen int) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	if maxLen <= 0 {
		maxLen = domain.MaxStringLen
	}
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

// IsUUIDLike reports whether v matches the canonical 8-4-4-4-12 hex form,
// case-insensitive.
func IsUUIDLike(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return uuidRe.MatchString(s)
}

// BuildSuggestedHostID derives a host id suggestion from a peer id: the
// peer id stripped to [A-Za-z0-9_-] capped at 20 chars, or the first 8
// chars of a fresh UUID when nothing survives the strip.
func BuildSuggestedHostID(peerID string) string {
	suffix := hostIDRe.ReplaceAllString(peerID, "")
	if len(suffix) > 20 {
		suffix = suffix[:20]
	}
	if suffix == "" {
		suffix = uuid.NewString()[:8]
	}
	return "host-" + suffix
}

// RemoteEvent is the normalized shape of a relayed input event. The
// numeric fields marshal unconditionally: zero is a legitimate clamped
// coordinate and must survive the relay.
type RemoteEvent struct {
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button string  `json:"button,omitempty"`
	DeltaX float64 `json:"deltaX"`
	DeltaY float64 `json:"deltaY"`
	Key    string  `json:"key,omitempty"`
	Code   string  `json:"code,omitempty"`
	Repeat bool    `json:"repeat,omitempty"`
}

var pointerTypes = map[string]bool{
	"move":       true,
	"click":      true,
	"mouse-down": true,
	"mouse-up":   true,
	"wheel":      true,
}

var buttonTypes = map[string]bool{
	"click":      true,
	"mouse-down": true,
	"mouse-up":   true,
}

var keyTypes = map[string]bool{
	"key-down": true,
	"key-up":   true,
}

var validButtons = map[string]bool{
	"left":   true,
	"right":  true,
	"middle": true,
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func finiteNumber(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// RemoteEventFrom validates a raw input event and returns its normalized
// shape, or nil when the event must be dropped. Pointer events require
// finite coordinates which are clamped to [0,1]; key events require at
// least one of key or code.
func RemoteEventFrom(raw map[string]any) *RemoteEvent {
	if raw == nil {
		return nil
	}
	typ, _ := raw["type"].(string)

	switch {
	case pointerTypes[typ]:
		x, okX := finiteNumber(raw["x"])
		y, okY := finiteNumber(raw["y"])
		if !okX || !okY {
			return nil
		}
		ev := &RemoteEvent{Type: typ, X: clamp01(x), Y: clamp01(y)}
		if buttonTypes[typ] {
			button, _ := raw["button"].(string)
			if !validButtons[button] {
				button = "left"
			}
			ev.Button = button
		}
		if typ == "wheel" {
			if dx, ok := finiteNumber(raw["deltaX"]); ok {
				ev.DeltaX = dx
			}
			if dy, ok := finiteNumber(raw["deltaY"]); ok {
				ev.DeltaY = dy
			}
		}
		return ev

	case keyTypes[typ]:
		key := String(raw["key"], domain.MaxKeyLen)
		code := String(raw["code"], domain.MaxKeyLen)
		if key == "" && code == "" {
			return nil
		}
		repeat, _ := raw["repeat"].(bool)
		return &RemoteEvent{Type: typ, Key: key, Code: code, Repeat: repeat}
	}
	return nil
}

// IsLikelyPrivateOrLocal reports whether a network identity points at a
// loopback, RFC1918, link-local or IPv6 ULA origin. The IPv4-mapped-IPv6
// prefix is stripped before matching.
func IsLikelyPrivateOrLocal(networkID string) bool {
	id := strings.ToLower(strings.TrimSpace(networkID))
	if id == "" {
		return false
	}
	if id == domain.LoopbackNetworkID {
		return true
	}
	id = strings.TrimPrefix(id, "::ffff:")

	if strings.HasPrefix(id, "10.") ||
		strings.HasPrefix(id, "192.168.") ||
		strings.HasPrefix(id, "169.254.") {
		return true
	}
	for octet := 16; octet <= 31; octet++ {
		if strings.HasPrefix(id, "172."+strconv.Itoa(octet)+".") {
			return true
		}
	}
	// IPv6 unique local range fc00::/7.
	return strings.HasPrefix(id, "fc") || strings.HasPrefix(id, "fd")
}
