package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Screen/internal/app/remote"
	"github.com/dkeye/Screen/internal/core"
)

type joinedRoomPayload struct {
	RoomID string `json:"roomId"`
	PeerID string `json:"peerId"`
}

type hostIDPayload struct {
	HostID string `json:"hostId"`
}

type setupRequestPayload struct {
	TargetPeerID string `json:"targetPeerId"`
}

type setupDecisionPayload struct {
	RequestID string `json:"requestId"`
	Accepted  bool   `json:"accepted"`
}

type sessionDecisionPayload struct {
	RequestID string `json:"requestId"`
	Accepted  bool   `json:"accepted"`
	Reason    string `json:"reason"`
}

type sessionStopPayload struct {
	SessionID string `json:"sessionId"`
}

type inputPayload struct {
	SessionID string         `json:"sessionId"`
	Event     map[string]any `json:"event"`
}

// dispatch routes one inbound event. A panic in a handler is logged and
// swallowed; the process and the other connections must stay up.
func (ctl *Controller) dispatch(conn *core.Connection, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Str("module", "signal").Str("conn", string(conn.ID)).Msg("handler panic recovered")
		}
	}()

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(conn.ID)).Msg("bad json")
		return
	}

	switch env.Type {
	case "create-room":
		ctl.roomEng.CreateRoom(conn)

	case "joined-room":
		var p joinedRoomPayload
		if !decode(env.Data, &p, conn) {
			return
		}
		ctl.roomEng.Join(conn, p.RoomID, p.PeerID)

	case "ready":
		ctl.roomEng.Ready(conn)

	case "leave-room":
		ctl.remoteEng.HandleLeaveRoom(conn)

	case "remote-host-register":
		var p hostIDPayload
		if !decode(env.Data, &p, conn) {
			return
		}
		ctl.remoteEng.Register(conn, p.HostID)

	case "remote-host-claim":
		var p hostIDPayload
		if !decode(env.Data, &p, conn) {
			return
		}
		ctl.remoteEng.Claim(conn, p.HostID)

	case "remote-hosts-request":
		ctl.remoteEng.HostsRequest(conn)

	case "remote-host-setup-request":
		var p setupRequestPayload
		if !decode(env.Data, &p, conn) {
			return
		}
		ctl.remoteEng.SetupRequest(conn, p.TargetPeerID)

	case "remote-host-setup-decision":
		var p setupDecisionPayload
		if !decode(env.Data, &p, conn) {
			return
		}
		ctl.remoteEng.SetupDecision(conn, p.RequestID, p.Accepted)

	case "remote-session-request":
		var p hostIDPayload
		if !decode(env.Data, &p, conn) {
			return
		}
		ctl.remoteEng.SessionRequest(conn, p.HostID)

	case "remote-session-decision", "remote-session-ui-decision":
		var p sessionDecisionPayload
		if !decode(env.Data, &p, conn) {
			return
		}
		ctl.remoteEng.Decision(conn, p.RequestID, p.Accepted, p.Reason)

	case "remote-session-stop":
		var p sessionStopPayload
		if !decode(env.Data, &p, conn) {
			return
		}
		ctl.remoteEng.Stop(conn, p.SessionID)

	case "remote-host-frame":
		var p remote.FrameIn
		if !decode(env.Data, &p, conn) {
			return
		}
		ctl.remoteEng.Frame(conn, p)

	case "remote-input":
		var p inputPayload
		if !decode(env.Data, &p, conn) {
			return
		}
		ctl.remoteEng.Input(conn, p.SessionID, p.Event)

	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown event")
	}
}

func decode(data json.RawMessage, out any, conn *core.Connection) bool {
	if len(data) == 0 {
		// Missing payload is fine for events with only optional fields.
		return true
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(conn.ID)).Msg("bad payload")
		return false
	}
	return true
}
