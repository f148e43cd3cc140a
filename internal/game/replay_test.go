package game

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cardlab/duel-server-go/internal/cards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func replaySettings(grunt *cards.Definition) Settings {
	settings := DefaultSettings()
	settings.Seed = 2024
	settings.StartCards = 3
	deck := make([]cards.Ref, 8)
	for i := range deck {
		deck[i] = grunt.Ref
	}
	settings.Decks = [2][]cards.Ref{deck, deck}
	return settings
}

// playSome plays the first affordable card of each turn and ends it.
func playSome(t *testing.T, d *Duel, turns int) {
	t.Helper()
	for i := 0; i < turns; i++ {
		p := d.WhoseTurn()
		props := d.Propositions(p)
		if len(props.Card) > 0 {
			c := props.Card[0]
			require.NoError(t, d.UseCard(p, c.CardID, c.AllowedSlots[:1], nil))
		}
		require.NoError(t, d.EndTurn(p))
	}
}

func TestRecordRequiresUnstartedDuel(t *testing.T) {
	d := startedDuel(t)
	_, err := d.Record()
	assert.Error(t, err)
}

func TestReplayVerify(t *testing.T) {
	grunt := testUnitDef("grunt", 1, 2, 3)
	catalog := testCatalog(t, grunt)

	d, err := NewDuel("replayed", replaySettings(grunt), catalog, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	replay, err := d.Record()
	require.NoError(t, err)
	require.NoError(t, d.Start())

	playSome(t, d, 4)
	assert.GreaterOrEqual(t, replay.Size(), 4)

	rebuilt, err := replay.Verify(catalog, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, d.Checksum(), rebuilt.Checksum())
	assert.Equal(t, d.Iteration(), rebuilt.Iteration())
}

func TestReplayDetectsDivergence(t *testing.T) {
	grunt := testUnitDef("grunt", 1, 2, 3)
	catalog := testCatalog(t, grunt)

	d, err := NewDuel("diverged", replaySettings(grunt), catalog, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	replay, err := d.Record()
	require.NoError(t, err)
	require.NoError(t, d.Start())
	playSome(t, d, 2)

	replay.Settings.Seed++
	_, err = replay.Verify(catalog, nil, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, ErrReplayDiverged)
}

func TestReplaySaveAndLoad(t *testing.T) {
	grunt := testUnitDef("grunt", 1, 2, 3)
	catalog := testCatalog(t, grunt)
	dir := t.TempDir()

	d, err := NewDuel("saved", replaySettings(grunt), catalog, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	replay, err := d.Record()
	require.NoError(t, err)
	require.NoError(t, d.Start())
	playSome(t, d, 3)

	require.NoError(t, replay.SaveToFile(dir))
	_, err = os.Stat(filepath.Join(dir, "saved.replay"))
	require.NoError(t, err)

	loaded, err := LoadReplayFromFile(dir, "saved")
	require.NoError(t, err)
	assert.Equal(t, replay.DuelID, loaded.DuelID)
	assert.Equal(t, replay.Settings, loaded.Settings)
	assert.Equal(t, replay.StartChecksum, loaded.StartChecksum)
	assert.Equal(t, replay.Steps, loaded.Steps)

	rebuilt, err := loaded.Verify(catalog, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, d.Checksum(), rebuilt.Checksum())
}

func TestLoadReplayMissingFile(t *testing.T) {
	_, err := LoadReplayFromFile(t.TempDir(), "nope")
	assert.Error(t, err)
}
