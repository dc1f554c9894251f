package signal

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Screen/internal/core"
)

func (ctl *Controller) writePump(c *WsConn) {
	for data := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
			return
		}
	}
}

// readPump serializes inbound events per connection: each one is handled
// to completion before the next read. On exit the connection is removed
// from the registry first so every cascade observes it as dead.
func (ctl *Controller) readPump(conn *core.Connection, c *WsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(conn.ID)).Msg("connection closing")
		ctl.reg.Remove(conn.ID)
		ctl.dropSocket(conn.ID)
		ctl.remoteEng.HandleDisconnect(conn)
		c.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Str("module", "signal").Str("conn", string(conn.ID)).Msg("readPump read error")
			return
		}
		ctl.dispatch(conn, data)
	}
}
