package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/cardlab/duel-server-go/internal/game"
	"github.com/cardlab/duel-server-go/internal/protocol"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// client is one WebSocket connection watching a duel from a seat or as a spectator.
type client struct {
	id     string
	seat   game.PlayerIndex
	hub    *hub
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func newClient(id string, seat game.PlayerIndex, h *hub, conn *websocket.Conn, buffer int, logger *zap.Logger) *client {
	return &client{
		id:     id,
		seat:   seat,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
		logger: logger.With(zap.String("conn_id", id), zap.Stringer("seat", seat)),
	}
}

// observe forwards a mutation to the connection. It runs with the duel locked, so
// it never blocks: a client that cannot keep up is disconnected and resyncs with a
// fresh welcome when it reconnects.
func (c *client) observe(ev game.MutationEvent) {
	frame, err := protocol.Encode(protocol.MsgDuelMutated, protocol.Mutated(ev, c.seat))
	if err != nil {
		c.logger.Error("failed to encode mutation", zap.Error(err))
		return
	}
	c.enqueue(frame)
}

func (c *client) enqueue(frame []byte) {
	select {
	case <-c.done:
	case c.send <- frame:
	default:
		c.logger.Warn("send buffer full, dropping connection")
		c.close()
	}
}

func (c *client) reply(typ string, payload any) {
	frame, err := protocol.Encode(typ, payload)
	if err != nil {
		c.logger.Error("failed to encode reply", zap.String("type", typ), zap.Error(err))
		return
	}
	c.enqueue(frame)
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump decodes requests and runs them on the duel until the connection ends.
func (c *client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		c.handle(frame)
	}
}

func (c *client) handle(frame []byte) {
	env, err := protocol.Decode(frame)
	if err != nil {
		c.logger.Debug("ignoring malformed frame", zap.Error(err))
		return
	}
	if !c.seat.Valid() {
		c.logger.Debug("ignoring request from spectator", zap.String("type", env.Type))
		return
	}

	req, err := protocol.ParseRequest(env, c.seat)
	if err != nil {
		if errors.Is(err, protocol.ErrMalformed) || errors.Is(err, protocol.ErrUnknownType) {
			c.logger.Debug("ignoring invalid request", zap.String("type", env.Type), zap.Error(err))
			return
		}
		c.reply(protocol.MsgDuelRequestFailed, protocol.DuelRequestFailed{
			RequestID: req.Header.RequestID,
			Reason:    protocol.Reason(err),
		})
		return
	}

	if err := c.hub.duel.Submit(req.Header.Iteration, req.Command); err != nil {
		c.logger.Debug("request failed",
			zap.Int("request_id", req.Header.RequestID),
			zap.String("command", string(req.Command.Kind)),
			zap.Error(err),
		)
		c.reply(protocol.MsgDuelRequestFailed, protocol.DuelRequestFailed{
			RequestID: req.Header.RequestID,
			Reason:    protocol.Reason(err),
		})
		return
	}
	c.reply(protocol.MsgDuelRequestAck, protocol.DuelRequestAck{RequestID: req.Header.RequestID})
}

// writePump writes queued frames and keeps the connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
