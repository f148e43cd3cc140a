package game

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ScriptHostFactory builds the script host of one duel. Each duel gets its own so
// duels share no mutable state.
type ScriptHostFactory func() ScriptHost

// DuelSummary is a listing entry of a managed duel.
type DuelSummary struct {
	ID         string       `json:"id"`
	Status     Status       `json:"status"`
	Turn       int          `json:"turn"`
	WhoseTurn  PlayerIndex  `json:"whoseTurn"`
	Winner     *PlayerIndex `json:"winner,omitempty"`
	Iteration  int          `json:"iteration"`
	CreateTime time.Time    `json:"createTime"`
}

type managedDuel struct {
	duel       *Duel
	replay     *Replay
	createTime time.Time
}

// Manager owns the duels of a process.
type Manager struct {
	duels     map[string]*managedDuel
	catalog   CardSource
	scripts   ScriptHostFactory
	defaults  Settings
	replayDir string
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewManager creates a duel manager. Duels created without decks use defaults.
func NewManager(catalog CardSource, scripts ScriptHostFactory, defaults Settings, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		duels:    make(map[string]*managedDuel),
		catalog:  catalog,
		scripts:  scripts,
		defaults: defaults,
		logger:   logger,
	}
}

// SetReplayDirectory enables replay recording. Replays are written when a duel is removed.
func (m *Manager) SetReplayDirectory(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replayDir = dir
}

// Defaults returns the settings used for new duels.
func (m *Manager) Defaults() Settings {
	return m.defaults
}

// CreateDuel creates a duel with a fresh id. It does not start it.
func (m *Manager) CreateDuel(settings Settings) (*Duel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	var host ScriptHost
	if m.scripts != nil {
		host = m.scripts()
	}
	d, err := NewDuel(id, settings, m.catalog, host, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create duel: %w", err)
	}

	entry := &managedDuel{duel: d, createTime: time.Now()}
	if m.replayDir != "" {
		if entry.replay, err = d.Record(); err != nil {
			return nil, fmt.Errorf("failed to record duel: %w", err)
		}
	}
	m.duels[id] = entry

	m.logger.Info("duel created",
		zap.String("duel_id", id),
		zap.Uint64("seed", settings.Seed),
		zap.Int("p1_deck", len(settings.Decks[P1])),
		zap.Int("p2_deck", len(settings.Decks[P2])),
	)
	return d, nil
}

// GetDuel returns a duel by id.
func (m *Manager) GetDuel(id string) (*Duel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.duels[id]
	if !ok {
		return nil, false
	}
	return entry.duel, true
}

// RemoveDuel forgets a duel, saving its replay when recording is enabled.
func (m *Manager) RemoveDuel(id string) error {
	m.mu.Lock()
	entry, ok := m.duels[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("duel %s: %w", id, ErrDuelNotFound)
	}
	delete(m.duels, id)
	dir := m.replayDir
	m.mu.Unlock()

	m.logger.Info("duel removed", zap.String("duel_id", id))

	if entry.replay != nil && dir != "" {
		if err := entry.replay.SaveToFile(dir); err != nil {
			return fmt.Errorf("failed to save replay: %w", err)
		}
		m.logger.Info("saved replay to disk",
			zap.String("duel_id", id),
			zap.Int("step_count", entry.replay.Size()),
			zap.String("directory", dir),
		)
	}
	return nil
}

// ListDuels returns summaries of every duel ordered by creation time.
func (m *Manager) ListDuels() []DuelSummary {
	m.mu.RLock()
	entries := make([]*managedDuel, 0, len(m.duels))
	for _, e := range m.duels {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].createTime.Equal(entries[j].createTime) {
			return entries[i].duel.id < entries[j].duel.id
		}
		return entries[i].createTime.Before(entries[j].createTime)
	})

	out := make([]DuelSummary, 0, len(entries))
	for _, e := range entries {
		s := e.duel.Summary()
		s.CreateTime = e.createTime
		out = append(out, s)
	}
	return out
}

// ActiveDuelCount returns the number of duels that have not ended.
func (m *Manager) ActiveDuelCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, e := range m.duels {
		if e.duel.Summary().Status != StatusEnded {
			count++
		}
	}
	return count
}

// Summary returns a listing entry for the duel.
func (d *Duel) Summary() DuelSummary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DuelSummary{
		ID:        d.id,
		Status:    d.status,
		Turn:      d.turn,
		WhoseTurn: d.whoseTurn,
		Winner:    d.winner,
		Iteration: d.iteration,
	}
}
