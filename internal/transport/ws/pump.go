// Package ws implements the WebSocket half of spec §9's "transport
// adapter wraps the registry.Handle" contract: an upgrade handler plus the
// reader/writer pump pair, grounded on the teacher's gobwas/ws pump design.
package ws

import (
	"bufio"
	"encoding/json"
	"net"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"

	"github.com/notifyhub/core/internal/model"
	"github.com/notifyhub/core/internal/registry"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
	writeWait  = 10 * time.Second
)

// ClientMessageHandler processes a decoded ClientMessage for one
// connection; the transport layer stays ignorant of subscribe/ack
// semantics, which live in the registry/dispatcher/ack packages.
type ClientMessageHandler func(h *registry.Handle, msg model.ClientMessage)

// Conn bundles a raw net.Conn with the connection's registry handle.
type Conn struct {
	Raw    net.Conn
	Handle *registry.Handle
}

// ReadPump decodes incoming frames and dispatches them to onMessage. It
// returns (and the caller should unregister the handle) on any read
// error or a close frame; a malformed text frame is logged and skipped.
func ReadPump(c Conn, onMessage ClientMessageHandler, log zerolog.Logger) {
	defer c.Raw.Close()

	c.Raw.SetReadDeadline(time.Now().Add(pongWait))

	for {
		data, op, err := wsutil.ReadClientData(c.Raw)
		if err != nil {
			return
		}
		c.Raw.SetReadDeadline(time.Now().Add(pongWait))
		c.Handle.Touch()

		switch op {
		case ws.OpClose:
			return
		case ws.OpPing, ws.OpPong:
			// gobwas/wsutil answers pings automatically; nothing to do.
		case ws.OpText:
			var msg model.ClientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Debug().Err(err).Str("connection_id", string(c.Handle.ID)).Msg("ws: malformed client frame, ignoring")
				continue
			}
			onMessage(c.Handle, msg)
		}
	}
}

// WritePump drains the handle's outbound queue into the connection,
// batching whatever has queued up since the last flush to reduce
// syscalls, and pings on an idle ticker (grounded on the teacher's
// writePump batching design).
func WritePump(c Conn, log zerolog.Logger) {
	writer := bufio.NewWriter(c.Raw)
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Raw.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Handle.Outbound():
			if !ok {
				c.Raw.SetWriteDeadline(time.Now().Add(writeWait))
				wsutil.WriteServerMessage(c.Raw, ws.OpClose, nil)
				return
			}
			c.Raw.SetWriteDeadline(time.Now().Add(writeWait))
			if !writeAndDrain(writer, c, msg, log) {
				return
			}

		case <-ticker.C:
			c.Raw.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsutil.WriteServerMessage(c.Raw, ws.OpPing, nil); err != nil {
				log.Debug().Err(err).Str("connection_id", string(c.Handle.ID)).Msg("ws: ping failed")
				return
			}
		}
	}
}

func writeAndDrain(writer *bufio.Writer, c Conn, first interface{ Bytes() ([]byte, error) }, log zerolog.Logger) bool {
	if !writeOne(writer, first, c, log) {
		return false
	}

	pending := len(c.Handle.Outbound())
	for i := 0; i < pending; i++ {
		msg, ok := <-c.Handle.Outbound()
		if !ok {
			break
		}
		if !writeOne(writer, msg, c, log) {
			return false
		}
	}

	if err := writer.Flush(); err != nil {
		log.Debug().Err(err).Str("connection_id", string(c.Handle.ID)).Msg("ws: flush failed")
		return false
	}
	return true
}

func writeOne(writer *bufio.Writer, msg interface{ Bytes() ([]byte, error) }, c Conn, log zerolog.Logger) bool {
	data, err := msg.Bytes()
	if err != nil {
		log.Error().Err(err).Msg("ws: failed to serialize outbound message")
		return true // skip this message, keep the connection alive
	}
	if err := wsutil.WriteServerMessage(writer, ws.OpText, data); err != nil {
		log.Debug().Err(err).Str("connection_id", string(c.Handle.ID)).Msg("ws: write failed")
		return false
	}
	return true
}
