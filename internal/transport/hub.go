package transport

import (
	"errors"
	"sync"

	"github.com/cardlab/duel-server-go/internal/game"
	"github.com/cardlab/duel-server-go/internal/protocol"
	"go.uber.org/zap"
)

// ErrSeatTaken is returned when a second connection claims an occupied seat.
var ErrSeatTaken = errors.New("seat already taken")

// hub tracks the connections of one duel and starts it once both seats are taken.
type hub struct {
	duel    *game.Duel
	mu      sync.Mutex
	seats   [2]*client
	clients map[*client]func()
	logger  *zap.Logger
}

func newHub(d *game.Duel, logger *zap.Logger) *hub {
	return &hub{
		duel:    d,
		clients: make(map[*client]func()),
		logger:  logger.With(zap.String("duel_id", d.ID())),
	}
}

// join registers c and queues its welcome message.
func (h *hub) join(c *client) error {
	h.mu.Lock()
	if c.seat.Valid() {
		if h.seats[c.seat] != nil {
			h.mu.Unlock()
			return ErrSeatTaken
		}
		h.seats[c.seat] = c
	}
	var status game.Status
	h.clients[c] = h.duel.Watch(c.seat, func(s game.Snapshot) {
		status = s.Status
		c.reply(protocol.MsgDuelWelcome, protocol.Welcome(s))
	}, c.observe)
	ready := h.seats[game.P1] != nil && h.seats[game.P2] != nil
	h.mu.Unlock()

	h.logger.Info("client joined", zap.String("conn_id", c.id), zap.Stringer("seat", c.seat))

	if ready && status == game.StatusAwaitingConnection {
		if err := h.duel.Start(); err != nil && !errors.Is(err, game.ErrIllegalCommand) {
			h.logger.Error("failed to start duel", zap.Error(err))
		}
	}
	return nil
}

func (h *hub) leave(c *client) {
	h.mu.Lock()
	cancel, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		if c.seat.Valid() && h.seats[c.seat] == c {
			h.seats[c.seat] = nil
		}
	}
	h.mu.Unlock()

	if ok {
		cancel()
		h.logger.Info("client left", zap.String("conn_id", c.id), zap.Stringer("seat", c.seat))
	}
}

// closeAll disconnects every client.
func (h *hub) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *hub) connected() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
