// Package transport serves duels over HTTP and WebSocket.
package transport

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cardlab/duel-server-go/internal/cards"
	"github.com/cardlab/duel-server-go/internal/game"
	"github.com/cardlab/duel-server-go/internal/protocol"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Options tune a Server.
type Options struct {
	// SendBuffer is the number of frames queued per connection.
	SendBuffer int
	// DeckSize is the size of the decks built for duels created without decks.
	DeckSize int
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{SendBuffer: 256, DeckSize: 20}
}

// Server exposes the duels of a manager.
type Server struct {
	manager  *game.Manager
	catalog  game.CardSource
	opts     Options
	upgrader websocket.Upgrader
	hubs     map[string]*hub
	mu       sync.Mutex
	logger   *zap.Logger
}

// NewServer creates a server for the duels of manager.
func NewServer(manager *game.Manager, catalog game.CardSource, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultOptions().SendBuffer
	}
	if opts.DeckSize <= 0 {
		opts.DeckSize = DefaultOptions().DeckSize
	}
	return &Server{
		manager: manager,
		catalog: catalog,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Seats are not authenticated, so origins are not either.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		hubs:   make(map[string]*hub),
		logger: logger,
	}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/duels", func(r chi.Router) {
		r.Post("/", s.handleCreateDuel)
		r.Get("/", s.handleListDuels)
		r.Route("/{duelID}", func(r chi.Router) {
			r.Get("/", s.handleGetDuel)
			r.Delete("/", s.handleDeleteDuel)
			r.Get("/ws", s.handleWebSocket)
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type createDuelRequest struct {
	Seed  *uint64         `json:"seed"`
	Decks [2][]cards.Ref `json:"decks"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	connections := 0
	for _, h := range s.hubs {
		connections += h.connected()
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"duels":       s.manager.ActiveDuelCount(),
		"connections": connections,
	})
}

func (s *Server) handleCreateDuel(w http.ResponseWriter, r *http.Request) {
	var req createDuelRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
	}

	settings := s.manager.Defaults()
	if req.Seed != nil {
		settings.Seed = *req.Seed
	} else {
		settings.Seed = rand.Uint64()
	}
	for _, p := range []game.PlayerIndex{game.P1, game.P2} {
		settings.Decks[p] = req.Decks[p]
		if len(settings.Decks[p]) == 0 {
			settings.Decks[p] = s.defaultDeck()
		}
	}

	d, err := s.manager.CreateDuel(settings)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, d.Summary())
}

// defaultDeck cycles through the catalog in reference order.
func (s *Server) defaultDeck() []cards.Ref {
	refs := s.catalog.Refs()
	if len(refs) == 0 {
		return nil
	}
	deck := make([]cards.Ref, s.opts.DeckSize)
	for i := range deck {
		deck[i] = refs[i%len(refs)]
	}
	return deck
}

func (s *Server) handleListDuels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.ListDuels())
}

func (s *Server) handleGetDuel(w http.ResponseWriter, r *http.Request) {
	d, ok := s.manager.GetDuel(chi.URLParam(r, "duelID"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: game.ErrDuelNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, protocol.Welcome(d.Snapshot(game.Spectator)))
}

func (s *Server) handleDeleteDuel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "duelID")
	if err := s.manager.RemoveDuel(id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, game.ErrDuelNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	s.mu.Lock()
	h, ok := s.hubs[id]
	delete(s.hubs, id)
	s.mu.Unlock()
	if ok {
		h.closeAll()
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseSeat reads the player query parameter: 1 or 2 for a seat, absent for a spectator.
func parseSeat(r *http.Request) (game.PlayerIndex, bool) {
	raw := r.URL.Query().Get("player")
	if raw == "" {
		return game.Spectator, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 2 {
		return game.Spectator, false
	}
	return game.PlayerIndex(n - 1), true
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "duelID")
	d, ok := s.manager.GetDuel(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: game.ErrDuelNotFound.Error()})
		return
	}
	seat, ok := parseSeat(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "player must be 1 or 2"})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	h := s.hub(d)
	c := newClient(uuid.New().String(), seat, h, conn, s.opts.SendBuffer, s.logger)
	if err := h.join(c); err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (s *Server) hub(d *game.Duel) *hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hubs[d.ID()]
	if !ok {
		h = newHub(d, s.logger)
		s.hubs[d.ID()] = h
	}
	return h
}

// Close disconnects every client.
func (s *Server) Close() {
	s.mu.Lock()
	hubs := make([]*hub, 0, len(s.hubs))
	for _, h := range s.hubs {
		hubs = append(hubs, h)
	}
	s.hubs = make(map[string]*hub)
	s.mu.Unlock()

	for _, h := range hubs {
		h.closeAll()
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
