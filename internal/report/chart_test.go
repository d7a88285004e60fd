package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecast/internal/errs"
)

func chartTable() CombinedTable {
	return CombinedTable{
		{Date: day(1), Actual: NewCell(100)},
		{Date: day(2), Actual: NewCell(101.5)},
		{Date: day(3), Actual: NewCell(99.75)},
		{
			Date:         day(4),
			Primary:      NewCell(102),
			PrimaryUpper: NewCell(104),
			PrimaryLower: NewCell(100),
			Secondary:    NewCell(101),
		},
		{
			Date:         day(5),
			Primary:      NewCell(103),
			PrimaryUpper: NewCell(105),
			PrimaryLower: NewCell(101),
			Secondary:    NewCell(102),
		},
	}
}

// primaryTable is the combined fixture without its secondary column,
// the shape the decomposition-only chart receives.
func primaryTable() CombinedTable {
	table := chartTable()
	for i := range table {
		table[i].Secondary = Cell{}
	}
	return table
}

func chartMeta() ChartMeta {
	return ChartMeta{
		Symbol:        "AAPL",
		PrimaryName:   "Trend + seasonality",
		SecondaryName: "Recurrent network",
		GeneratedAt:   time.Date(2024, time.January, 6, 12, 0, 0, 0, time.UTC),
	}
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, primaryTable(), chartTable(), chartMeta()))

	html := buf.String()
	assert.Greater(t, len(html), 1000)
	assert.Contains(t, html, "echarts")
	assert.Contains(t, html, "AAPL")
	assert.Contains(t, html, "Actual")
	assert.Contains(t, html, "Trend + seasonality")
	assert.Contains(t, html, "Recurrent network")
	assert.Contains(t, html, "both models")
	assert.Contains(t, html, "Confidence band")
	assert.Contains(t, html, "slider")
	assert.Contains(t, html, "forecast start")
	assert.Contains(t, html, "2024-01-01")
	assert.Contains(t, html, "2024-01-05")
}

func TestRenderHTMLEmptyTable(t *testing.T) {
	cases := map[string]struct {
		primary  CombinedTable
		combined CombinedTable
	}{
		"no primary":  {primary: nil, combined: chartTable()},
		"no combined": {primary: primaryTable(), combined: nil},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			err := RenderHTML(&buf, tc.primary, tc.combined, chartMeta())
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrInvalidInput)
			assert.Zero(t, buf.Len())
		})
	}
}

func TestSaveHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "forecast_report.html")
	require.NoError(t, SaveHTML(path, primaryTable(), chartTable(), chartMeta()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
