// Package signal is the WebSocket transport gateway: it admits client
// connections, enforces the shared token, pumps messages and dispatches
// named events to the room and remote-control engines.
package signal

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Screen/internal/app/remote"
	"github.com/dkeye/Screen/internal/app/rooms"
	"github.com/dkeye/Screen/internal/core"
	"github.com/dkeye/Screen/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	reg   *core.Registry
	token string

	roomEng   *rooms.Engine
	remoteEng *remote.Engine

	mu    sync.RWMutex
	socks map[domain.ConnID]*WsConn
	rooms map[domain.RoomID]map[domain.ConnID]struct{}
}

// NewController builds the gateway. Engines are attached afterwards with
// Bind because they need the gateway to emit through.
func NewController(reg *core.Registry, token string) *Controller {
	return &Controller{
		reg:   reg,
		token: strings.TrimSpace(token),
		socks: make(map[domain.ConnID]*WsConn),
		rooms: make(map[domain.RoomID]map[domain.ConnID]struct{}),
	}
}

func (ctl *Controller) Bind(roomEng *rooms.Engine, remoteEng *remote.Engine) {
	ctl.roomEng = roomEng
	ctl.remoteEng = remoteEng
}

type WsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS admits one client connection. The token gate runs before the
// upgrade so a refused client never attaches any state.
func (ctl *Controller) HandleWS(c *gin.Context) {
	if ctl.token != "" {
		presented := strings.TrimSpace(c.Query("token"))
		if presented == "" {
			presented = strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		}
		if presented != ctl.token {
			log.Warn().Str("module", "signal").Str("remote", c.Request.RemoteAddr).Msg("handshake refused")
			c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
			return
		}
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(domain.MaxPayloadBytes)

	conn := core.NewConnection(domain.ConnID(uuid.NewString()), networkIDFrom(c.Request))
	sock := &WsConn{
		conn: ws,
		send: make(chan []byte, 64),
	}

	ctl.mu.Lock()
	ctl.socks[conn.ID] = sock
	ctl.mu.Unlock()
	ctl.reg.Add(conn)

	log.Info().Str("module", "signal").Str("conn", string(conn.ID)).Str("network", conn.NetworkID).Msg("connection established")

	// UIs populate their host pickers without asking.
	ctl.remoteEng.SendHostsList(conn)

	go ctl.writePump(sock)
	go ctl.readPump(conn, sock)
}

// networkIDFrom normalizes the remote origin: first forwarded-for entry if
// present, else the peer address host. Loopback collapses to one identity
// so local agents and local browsers compare equal.
func networkIDFrom(r *http.Request) string {
	raw := ""
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		raw = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if raw == "" {
		raw = r.RemoteAddr
		if host, _, err := net.SplitHostPort(raw); err == nil {
			raw = host
		}
	}
	raw = strings.Trim(raw, "[]")
	if raw == "" {
		return ""
	}
	if ip := net.ParseIP(raw); ip != nil && ip.IsLoopback() {
		return domain.LoopbackNetworkID
	}
	if strings.EqualFold(raw, "localhost") {
		return domain.LoopbackNetworkID
	}
	return raw
}
