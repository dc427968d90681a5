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
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashare-lab/kline-scan/universe"
)

func writeRaw(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func TestBinnerEdges(t *testing.T) {
	b := NewBinner(10, -100, 100)
	assert.Equal(t, 21, b.NumBins())

	edges := b.Edges()
	require.Len(t, edges, 22)
	assert.Equal(t, -100.0, edges[0])
	// One extra bin of slack above the domain maximum.
	assert.Equal(t, 110.0, edges[len(edges)-1])
}

func TestBinnerAssign(t *testing.T) {
	b := NewBinner(10, -100, 100)

	assert.Equal(t, 5, b.Assign(-50))  // [-50, -40)
	assert.Equal(t, 10, b.Assign(5))   // [0, 10)
	assert.Equal(t, 11, b.Assign(12))  // [10, 20)
	assert.Equal(t, 19, b.Assign(97))  // [90, 100)
	assert.Equal(t, 10, b.Assign(0))   // lower edge belongs to its bin
	assert.Equal(t, 9, b.Assign(-0.1)) // just below an edge

	// Domain extremes clamp into the outer bins instead of being dropped.
	assert.Equal(t, 0, b.Assign(-100))
	assert.Equal(t, 0, b.Assign(-250))
	assert.Equal(t, 20, b.Assign(100))
	assert.Equal(t, 20, b.Assign(345))
}

func TestHistogramCountsEveryValueExactlyOnce(t *testing.T) {
	b := NewBinner(10, -100, 100)
	values := []float64{-150, -100, -50, -0.1, 0, 5, 12, 97, 100, 250}

	counts := b.Histogram(values)
	require.Len(t, counts, b.NumBins())
	sum := 0
	for _, c := range counts {
		sum += c
	}
	assert.Equal(t, len(values), sum)
	// The domain maximum lands in the final, upper-inclusive bin.
	assert.Equal(t, 2, counts[20])
}

func TestBinMembership(t *testing.T) {
	b := NewBinner(10, -100, 100)
	values := []float64{-50, 5, 12, 97}
	refs := []universe.Instrument{
		{Code: "600519", Name: "貴州茅台"},
		{Code: "000001", Name: "平安銀行"},
		{Code: "000002", Name: "萬科A"},
		{Code: "300750", Name: "寧德時代"},
	}

	bins, err := b.Bin(values, refs)
	require.NoError(t, err)
	require.Len(t, bins, 21)

	assert.Equal(t, 1, bins[5].Count)
	assert.Equal(t, refs[0:1], bins[5].Members)
	assert.Equal(t, "-50%~-40%", bins[5].Label())

	assert.Equal(t, 1, bins[10].Count)
	assert.Equal(t, 1, bins[11].Count)
	assert.Equal(t, 1, bins[19].Count)
	assert.Equal(t, "90%~100%", bins[19].Label())

	total := 0
	for _, bn := range bins {
		total += bn.Count
	}
	assert.Equal(t, len(values), total)

	_, err = b.Bin(values, refs[:2])
	assert.Error(t, err)
}

func TestTextReport(t *testing.T) {
	b := NewBinner(10, -100, 100)
	values := []float64{5, 7, 97}
	refs := []universe.Instrument{
		{Code: "600519", Name: "貴州茅台"},
		{Code: "000001", Name: "平安銀行"},
		{Code: "300750", Name: "寧德時代"},
	}
	bins, err := b.Bin(values, refs)
	require.NoError(t, err)

	report := TextReport(bins)
	lines := strings.Split(report, "\n")
	// Header, separator, and one line per non-empty bin.
	require.Len(t, lines, 4)

	assert.Contains(t, lines[2], "0%~10%")
	assert.Contains(t, lines[2], "2 ( 66.7%)")
	assert.Contains(t, lines[2], `https://www.wantgoo.com/stock/600519/technical-chart`)
	assert.Contains(t, lines[2], "600519(貴州茅台)")
	assert.Contains(t, lines[3], "90%~100%")
	assert.Contains(t, lines[3], "300750(寧德時代)")
	assert.NotContains(t, report, "-100%~-90%", "empty bins are omitted")
}

func TestBuildCharts(t *testing.T) {
	rows := []Row{
		ComputeRow("600519", "貴州茅台", flatBars(21, 100)),
		ComputeRow("000001", "平安銀行", flatBars(30, 50)),
	}
	specs := BuildCharts(rows, NewBinner(10, -100, 100))

	// Both series reach Week and Month but not Year: six charts.
	require.Len(t, specs, 6)
	ids := make([]string, 0, len(specs))
	for _, s := range specs {
		ids = append(ids, s.ID)
		require.Len(t, s.Counts, 21)
		sum := 0
		for _, c := range s.Counts {
			sum += c
		}
		assert.Equal(t, 2, sum)
	}
	assert.Equal(t, []string{"week_high", "week_close", "week_low", "month_high", "month_close", "month_low"}, ids)
	assert.Equal(t, "週K 最高-進攻 報酬分布", specs[0].Title)
}

func TestColumnMembersAligned(t *testing.T) {
	rows := []Row{
		ComputeRow("600519", "貴州茅台", flatBars(21, 100)),
		ComputeRow("000001", "平安銀行", flatBars(10, 50)), // too short for any horizon
	}
	values, refs := ColumnMembers(rows, "Week_Close")
	require.Len(t, values, 1)
	require.Len(t, refs, 1)
	assert.Equal(t, "600519", refs[0].Code)
}
