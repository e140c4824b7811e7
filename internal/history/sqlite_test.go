package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteSource_ImportAndHistory(t *testing.T) {
	src, err := OpenSQLite(filepath.Join(t.TempDir(), "bars.db"))
	require.NoError(t, err)
	defer src.Close()

	ctx := context.Background()
	n, err := src.Import(ctx, "aapl", []core.Bar{
		bar("2024-01-02", 101),
		bar("2024-01-03", 102),
		bar("2024-01-04", 103),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// re-import replaces the same day
	_, err = src.Import(ctx, "AAPL", []core.Bar{bar("2024-01-03", 150)})
	require.NoError(t, err)

	bars, err := src.History(ctx, "AAPL", day("2024-01-03"), day("2024-01-04"), core.TimeFrameDay)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, bar("2024-01-03", 150), bars[0])
	assert.Equal(t, 103.0, bars[1].Close)

	tickers, err := src.Tickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, tickers)

	none, err := src.History(ctx, "MSFT", day("2024-01-01"), day("2024-01-31"), core.TimeFrameDay)
	require.NoError(t, err)
	assert.Empty(t, none)
}
