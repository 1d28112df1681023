package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantara-labs/falcon/internal/position"
	"github.com/quantara-labs/falcon/internal/risk"
	"github.com/quantara-labs/falcon/internal/strategy"
)

func openTestPosition(t *testing.T) *position.Position {
	t.Helper()
	sig := &strategy.TradeSignal{
		Strategy: "vwap_mr",
		Symbol:   "BTCUSDT",
		Side:     strategy.SideLong,
		Entry:    100,
		Stop:     98,
		TPLevels: []strategy.TPLevel{
			{Price: 101, SizeFraction: 0.5},
			{Price: 102, SizeFraction: 0.5},
		},
		Timestamp: time.Now().UTC(),
		TimeStop:  45 * time.Minute,
	}
	sized := risk.Result{Contracts: 10, Passed: true, ReductionFactor: 1}
	return position.Open(sig, sized, 100, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestLoadMissingFileIsCleanStart(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "never-created"))

	positions, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	pos := openTestPosition(t)

	require.NoError(t, store.Save(map[string]position.Snapshot{
		"BTCUSDT": pos.Snapshot(),
	}))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Contains(t, loaded, "BTCUSDT")

	restored := position.FromSnapshot(loaded["BTCUSDT"])
	assert.Equal(t, pos.Symbol, restored.Symbol)
	assert.Equal(t, pos.Side, restored.Side)
	assert.Equal(t, pos.State(), restored.State())
	assert.InDelta(t, pos.StopPrice(), restored.StopPrice(), 1e-12)
	assert.InDelta(t, pos.Remaining(), restored.Remaining(), 1e-12)
	assert.True(t, pos.EntryTime.Equal(restored.EntryTime))
}

func TestSaveKeepsBackupOfPreviousFile(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	pos := openTestPosition(t)

	require.NoError(t, store.Save(map[string]position.Snapshot{"BTCUSDT": pos.Snapshot()}))
	require.NoError(t, store.Save(map[string]position.Snapshot{}))

	backup, err := os.ReadFile(filepath.Join(dir, "positions_backup.json"))
	require.NoError(t, err)
	assert.Contains(t, string(backup), "BTCUSDT")

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "positions.json"), []byte("{not json"), 0644))

	_, err := NewStore(dir).Load()
	assert.Error(t, err)
}

func TestRestoredPositionKeepsManagingExits(t *testing.T) {
	pos := openTestPosition(t)
	restored := position.FromSnapshot(pos.Snapshot())

	trade := restored.OnStopLoss(98, time.Now().UTC())
	require.NotNil(t, trade)
	assert.Equal(t, position.ExitStopLoss, trade.ExitReason)
	assert.InDelta(t, -20, trade.PnL, 1e-9)
}
