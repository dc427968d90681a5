/*
Copyright 2026

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package analyze

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashare-lab/kline-scan/series"
)

// flatBars builds n bars with every price equal to px.
func flatBars(n int, px float64) []series.Bar {
	bars := make([]series.Bar, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = series.Bar{Date: base.AddDate(0, 0, i), Open: px, High: px, Low: px, Close: px, Volume: 100}
	}
	return bars
}

func TestComputeRowTwentyOneBars(t *testing.T) {
	// 21 flat bars at 100 with a 110 final close, a 115 high and a 95 low
	// inside the trailing five bars.
	bars := flatBars(21, 100)
	bars[20].Close = 110
	bars[18].High = 115
	bars[17].Low = 95

	row := ComputeRow("600519", "貴州茅台", bars)

	require.NotNil(t, row.WeekClose)
	require.NotNil(t, row.WeekHigh)
	require.NotNil(t, row.WeekLow)
	assert.InDelta(t, 10.0, *row.WeekClose, 1e-9)
	assert.InDelta(t, 15.0, *row.WeekHigh, 1e-9)
	assert.InDelta(t, -5.0, *row.WeekLow, 1e-9)

	// With exactly 21 bars the Month horizon is computed too: its reference
	// close sits at index 0, and here the extremes fall inside the last five
	// bars, so the values coincide with the Week ones.
	require.NotNil(t, row.MonthClose)
	assert.InDelta(t, 10.0, *row.MonthClose, 1e-9)
	assert.InDelta(t, 15.0, *row.MonthHigh, 1e-9)
	assert.InDelta(t, -5.0, *row.MonthLow, 1e-9)

	// 21 bars cannot look back a year.
	assert.Nil(t, row.YearClose)
	assert.Nil(t, row.YearHigh)
	assert.Nil(t, row.YearLow)
}

func TestComputeRowHorizonNeedsMoreBarsThanDays(t *testing.T) {
	// Exactly 20 bars: Week computes, Month (20 ≤ 20) does not.
	row := ComputeRow("000001", "平安銀行", flatBars(20, 50))
	assert.NotNil(t, row.WeekClose)
	assert.Nil(t, row.MonthClose)
	assert.Nil(t, row.YearClose)
}

func TestComputeRowZeroReferenceCloseSkipsHorizon(t *testing.T) {
	bars := flatBars(21, 100)
	bars[15].Close = 0 // Week reference close
	row := ComputeRow("000002", "萬科A", bars)
	assert.Nil(t, row.WeekClose)
	assert.NotNil(t, row.MonthClose)
}

func TestMetricLookup(t *testing.T) {
	row := ComputeRow("600519", "貴州茅台", flatBars(21, 100))

	v, ok := row.Metric("Week_Close")
	assert.True(t, ok)
	assert.InDelta(t, 0.0, v, 1e-9)

	_, ok = row.Metric("Year_Close")
	assert.False(t, ok)

	_, ok = row.Metric("Decade_Close")
	assert.False(t, ok)
}

func TestComputeAllSkipsShortAndMalformedSeries(t *testing.T) {
	store, err := series.NewStore(t.TempDir(), 100)
	require.NoError(t, err)

	require.NoError(t, store.Write("600519", "貴州茅台", flatBars(21, 100)))
	require.NoError(t, store.Write("000001", "平安銀行", flatBars(19, 50))) // too short
	// Malformed file: skipped, never aborts the scan.
	require.NoError(t, writeRaw(store.Path("300001", "特銳德"), "date,open\ngarbage\n"))

	rows, err := NewAggregator(store, false).ComputeAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "600519", rows[0].Ticker)
	assert.Equal(t, "貴州茅台", rows[0].FullID)
}
