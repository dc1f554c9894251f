package sanitize_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/dkeye/Screen/internal/sanitize"
)

func TestString(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		maxLen int
		want   string
	}{
		{"trims whitespace", "  hello  ", 0, "hello"},
		{"truncates", strings.Repeat("a", 200), 0, strings.Repeat("a", 128)},
		{"explicit cap", "abcdefgh", 4, "abcd"},
		{"non-string", 42, 0, ""},
		{"nil", nil, 0, ""},
		{"empty", "", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitize.String(tt.in, tt.maxLen); got != tt.want {
				t.Errorf("String(%v, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestIsUUIDLike(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{"123e4567-e89b-12d3-a456-426614174000", true},
		{"123E4567-E89B-12D3-A456-426614174000", true},
		{"123e4567e89b12d3a456426614174000", false},
		{"123e4567-e89b-12d3-a456-42661417400", false},
		{"not-a-uuid", false},
		{42, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := sanitize.IsUUIDLike(tt.in); got != tt.want {
			t.Errorf("IsUUIDLike(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBuildSuggestedHostID(t *testing.T) {
	if got := sanitize.BuildSuggestedHostID("p2"); got != "host-p2" {
		t.Errorf("BuildSuggestedHostID(p2) = %q", got)
	}
	if got := sanitize.BuildSuggestedHostID("alice bob!"); got != "host-alicebob" {
		t.Errorf("stripped id = %q", got)
	}
	long := strings.Repeat("x", 40)
	if got := sanitize.BuildSuggestedHostID(long); got != "host-"+strings.Repeat("x", 20) {
		t.Errorf("long id = %q", got)
	}
	// Nothing survives the strip: host- plus 8 uuid chars.
	got := sanitize.BuildSuggestedHostID("!!!")
	if !strings.HasPrefix(got, "host-") || len(got) != len("host-")+8 {
		t.Errorf("fallback id = %q", got)
	}
}

func TestRemoteEventFromPointer(t *testing.T) {
	ev := sanitize.RemoteEventFrom(map[string]any{"type": "move", "x": 1.5, "y": -0.25})
	if ev == nil {
		t.Fatal("move event dropped")
	}
	if ev.X != 1.0 || ev.Y != 0.0 {
		t.Errorf("clamp: got x=%v y=%v", ev.X, ev.Y)
	}

	ev = sanitize.RemoteEventFrom(map[string]any{"type": "click", "x": 0.5, "y": 0.5, "button": "bogus"})
	if ev == nil || ev.Button != "left" {
		t.Errorf("button default: %+v", ev)
	}

	ev = sanitize.RemoteEventFrom(map[string]any{"type": "click", "x": 0.5, "y": 0.5, "button": "middle"})
	if ev == nil || ev.Button != "middle" {
		t.Errorf("button kept: %+v", ev)
	}

	ev = sanitize.RemoteEventFrom(map[string]any{"type": "wheel", "x": 0.1, "y": 0.2, "deltaY": 3.0})
	if ev == nil || ev.DeltaX != 0 || ev.DeltaY != 3.0 {
		t.Errorf("wheel deltas: %+v", ev)
	}

	if ev := sanitize.RemoteEventFrom(map[string]any{"type": "move", "x": "NaN", "y": 0.5}); ev != nil {
		t.Errorf("non-numeric x accepted: %+v", ev)
	}
	if ev := sanitize.RemoteEventFrom(map[string]any{"type": "move", "y": 0.5}); ev != nil {
		t.Errorf("missing x accepted: %+v", ev)
	}
}

func TestRemoteEventZeroCoordinateSurvivesMarshal(t *testing.T) {
	ev := sanitize.RemoteEventFrom(map[string]any{"type": "move", "x": -0.5, "y": 0.5})
	if ev == nil || ev.X != 0 {
		t.Fatalf("clamp to zero: %+v", ev)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if x, ok := got["x"]; !ok || x != 0.0 {
		t.Errorf("zero x dropped from payload: %s", data)
	}

	ev = sanitize.RemoteEventFrom(map[string]any{"type": "wheel", "x": 0.1, "y": 0.2})
	data, err = json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	got = map[string]any{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if d, ok := got["deltaY"]; !ok || d != 0.0 {
		t.Errorf("default wheel delta dropped from payload: %s", data)
	}
}

func TestRemoteEventFromKeys(t *testing.T) {
	ev := sanitize.RemoteEventFrom(map[string]any{"type": "key-down", "key": "a", "repeat": true})
	if ev == nil || ev.Key != "a" || !ev.Repeat {
		t.Fatalf("key event: %+v", ev)
	}
	ev = sanitize.RemoteEventFrom(map[string]any{"type": "key-up", "code": "KeyA"})
	if ev == nil || ev.Code != "KeyA" {
		t.Fatalf("code-only event: %+v", ev)
	}
	if ev := sanitize.RemoteEventFrom(map[string]any{"type": "key-down"}); ev != nil {
		t.Errorf("empty key event accepted: %+v", ev)
	}
	long := strings.Repeat("k", 100)
	ev = sanitize.RemoteEventFrom(map[string]any{"type": "key-down", "key": long})
	if ev == nil || len(ev.Key) != 64 {
		t.Errorf("key not capped: %+v", ev)
	}
}

func TestRemoteEventFromUnknownType(t *testing.T) {
	if ev := sanitize.RemoteEventFrom(map[string]any{"type": "drag", "x": 0.5, "y": 0.5}); ev != nil {
		t.Errorf("unknown type accepted: %+v", ev)
	}
	if ev := sanitize.RemoteEventFrom(nil); ev != nil {
		t.Errorf("nil event accepted: %+v", ev)
	}
}

func TestIsLikelyPrivateOrLocal(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"loopback-local", true},
		{"10.1.2.3", true},
		{"192.168.0.10", true},
		{"169.254.1.1", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"172.32.0.1", false},
		{"172.15.0.1", false},
		{"::ffff:192.168.1.4", true},
		{"fd12:3456::1", true},
		{"fc00::1", true},
		{"203.0.113.9", false},
		{"2001:db8::1", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := sanitize.IsLikelyPrivateOrLocal(tt.in); got != tt.want {
			t.Errorf("IsLikelyPrivateOrLocal(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
