package game

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrReplayDiverged is returned when re-running a replay does not reproduce the
// recorded checksums.
var ErrReplayDiverged = errors.New("replay diverged")

const replayVersion = 1

// ReplayStep is one accepted command and the state it produced.
type ReplayStep struct {
	Command   Command
	Iteration int
	Checksum  string
}

// Replay is the command log of a duel. Since duels are deterministic for a seed,
// settings and commands are enough to rebuild every state.
type Replay struct {
	DuelID        string
	Settings      Settings
	StartChecksum string
	Steps         []ReplayStep

	mu sync.RWMutex
}

// Recorder appends the accepted commands of a duel to a replay.
type Recorder struct {
	replay *Replay
}

// Record attaches a new recorder to a duel that has not started yet.
func (d *Duel) Record() (*Replay, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.status != StatusAwaitingConnection {
		return nil, fmt.Errorf("failed to record duel %s: already started", d.id)
	}
	r := &Replay{DuelID: d.id, Settings: d.settings}
	d.recorder = &Recorder{replay: r}
	return r, nil
}

func (rec *Recorder) recordStart(d *Duel) {
	rec.replay.mu.Lock()
	defer rec.replay.mu.Unlock()
	rec.replay.StartChecksum = d.checksum()
}

func (rec *Recorder) recordCommand(d *Duel, cmd Command) {
	rec.replay.mu.Lock()
	defer rec.replay.mu.Unlock()
	rec.replay.Steps = append(rec.replay.Steps, ReplayStep{
		Command:   cmd,
		Iteration: d.iteration,
		Checksum:  d.checksum(),
	})
}

// Size returns the number of recorded commands.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Steps)
}

// Verify re-runs the replay on a fresh duel and checks every recorded checksum.
// It returns the rebuilt duel.
func (r *Replay) Verify(catalog CardSource, scripts ScriptHost, logger *zap.Logger) (*Duel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, err := NewDuel(r.DuelID, r.Settings, catalog, scripts, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild duel: %w", err)
	}
	if err := d.Start(); err != nil {
		return nil, fmt.Errorf("failed to start rebuilt duel: %w", err)
	}
	if sum := d.Checksum(); sum != r.StartChecksum {
		return d, fmt.Errorf("%w: start state %s != %s", ErrReplayDiverged, sum, r.StartChecksum)
	}

	for i, step := range r.Steps {
		if err := d.Execute(step.Command); err != nil {
			return d, fmt.Errorf("%w: step %d rejected: %v", ErrReplayDiverged, i, err)
		}
		if it := d.Iteration(); it != step.Iteration {
			return d, fmt.Errorf("%w: step %d iteration %d != %d", ErrReplayDiverged, i, it, step.Iteration)
		}
		if sum := d.Checksum(); sum != step.Checksum {
			return d, fmt.Errorf("%w: step %d checksum %s != %s", ErrReplayDiverged, i, sum, step.Checksum)
		}
	}
	return d, nil
}

// replayMetadata heads a replay file.
type replayMetadata struct {
	DuelID    string
	Timestamp time.Time
	Version   int
	StepCount int
}

// SaveToFile writes the replay to <directory>/<duel id>.replay as gzipped gob.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	filename := filepath.Join(directory, fmt.Sprintf("%s.replay", r.DuelID))
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	encoder := gob.NewEncoder(gzipWriter)
	metadata := replayMetadata{
		DuelID:    r.DuelID,
		Timestamp: time.Now(),
		Version:   replayVersion,
		StepCount: len(r.Steps),
	}
	if err := encoder.Encode(&metadata); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := encoder.Encode(&r.Settings); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := encoder.Encode(r.StartChecksum); err != nil {
		return fmt.Errorf("failed to encode start checksum: %w", err)
	}
	for i := range r.Steps {
		if err := encoder.Encode(&r.Steps[i]); err != nil {
			return fmt.Errorf("failed to encode step %d: %w", i, err)
		}
	}
	return nil
}

// LoadReplayFromFile reads a replay written by SaveToFile.
func LoadReplayFromFile(directory, duelID string) (*Replay, error) {
	filename := filepath.Join(directory, fmt.Sprintf("%s.replay", duelID))

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	decoder := gob.NewDecoder(gzipReader)

	var metadata replayMetadata
	if err := decoder.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if metadata.Version != replayVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", metadata.Version)
	}

	r := &Replay{DuelID: metadata.DuelID}
	if err := decoder.Decode(&r.Settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := decoder.Decode(&r.StartChecksum); err != nil {
		return nil, fmt.Errorf("failed to decode start checksum: %w", err)
	}
	for i := 0; i < metadata.StepCount; i++ {
		var step ReplayStep
		if err := decoder.Decode(&step); err != nil {
			return nil, fmt.Errorf("failed to decode step %d: %w", i, err)
		}
		r.Steps = append(r.Steps, step)
	}
	return r, nil
}
