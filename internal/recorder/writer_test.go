package recorder

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
)

func TestWriterAppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewWriter(Config{Dir: dir, QueueSize: 16})
	require.NoError(t, err)

	require.NoError(t, writer.Start(context.Background()))

	events := []model.LiquidationEvent{
		{Symbol: "BTCUSDT", Side: enum.OrderSideSell, SideLabel: "SELL", Quantity: decimal.RequireFromString("0.014"), EventTimeMs: 1},
		{Symbol: "ETHUSDT", Side: enum.OrderSideBuy, SideLabel: "BUY", Quantity: decimal.RequireFromString("2.5"), EventTimeMs: 2},
	}
	for _, event := range events {
		require.NoError(t, writer.TryAppend(event))
	}
	require.NoError(t, writer.Close())

	matches, err := filepath.Glob(filepath.Join(dir, "liquidations_*.jsonl"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	raw, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)

	var got model.LiquidationEvent
	require.NoError(t, sonic.ConfigFastest.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.Equal(t, "SELL", got.SideLabel)
	assert.True(t, decimal.RequireFromString("0.014").Equal(got.Quantity))
}

func TestWriterLifecycle(t *testing.T) {
	writer, err := NewWriter(Config{Dir: t.TempDir()})
	require.NoError(t, err)

	// appends before Start are rejected
	assert.ErrorIs(t, writer.TryAppend(struct{}{}), ErrNotStarted)

	require.NoError(t, writer.Start(context.Background()))
	assert.ErrorIs(t, writer.Start(context.Background()), ErrAlreadyStarted)

	require.NoError(t, writer.Close())
	assert.ErrorIs(t, writer.TryAppend(struct{}{}), ErrClosed)
	// Close is idempotent
	assert.NoError(t, writer.Close())
}

func TestConfigValidate(t *testing.T) {
	_, err := NewWriter(Config{})
	assert.Error(t, err)

	assert.NoError(t, DefaultConfig(t.TempDir()).Validate())
	assert.Error(t, Config{Dir: "x", QueueSize: -1}.withDefaults().Validate())
}
