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
	"fmt"
	"math"
	"strings"

	"github.com/ashare-lab/kline-scan/universe"
)

// deepLinkFormat renders one instrument as a link to its technical chart.
const deepLinkFormat = `<a href="https://www.wantgoo.com/stock/%s/technical-chart" style="text-decoration:none; color:#0366d6;">%s(%s)</a>`

// Binner buckets clamped return values into fixed-width bins. Values are
// clamped into [Min, Max] before binning so outliers pile up in the extreme
// bins instead of being dropped; the bin edges extend one bin past Max so
// the domain maximum is always fully contained.
type Binner struct {
	BinSize float64
	Min     float64
	Max     float64
}

// NewBinner applies the default domain (bins of 10 over [-100, 100]) for
// zero values.
func NewBinner(binSize, min, max float64) Binner {
	if binSize == 0 {
		binSize = 10
	}
	if min == 0 && max == 0 {
		min, max = -100, 100
	}
	return Binner{BinSize: binSize, Min: min, Max: max}
}

// NumBins returns the bin count, including the slack bin above Max.
func (b Binner) NumBins() int {
	return int(math.Ceil((b.Max-b.Min)/b.BinSize)) + 1
}

// Edges returns the NumBins+1 bin boundaries from Min to Max+BinSize.
func (b Binner) Edges() []float64 {
	n := b.NumBins()
	edges := make([]float64, n+1)
	for i := range edges {
		edges[i] = b.Min + float64(i)*b.BinSize
	}
	return edges
}

// Clamp forces a value into the [Min, Max] domain.
func (b Binner) Clamp(v float64) float64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Assign returns the bin index for a value. Bins are half-open [lo, up)
// except the last, whose upper edge is inclusive, so every clamped value
// lands in exactly one bin.
func (b Binner) Assign(v float64) int {
	v = b.Clamp(v)
	idx := int(math.Floor((v - b.Min) / b.BinSize))
	if idx < 0 {
		idx = 0
	}
	if idx >= b.NumBins() {
		idx = b.NumBins() - 1
	}
	return idx
}

// Histogram returns per-bin counts over all values; the counts sum to
// len(values).
func (b Binner) Histogram(values []float64) []int {
	counts := make([]int, b.NumBins())
	for _, v := range values {
		counts[b.Assign(v)]++
	}
	return counts
}

// Bin is one bucket with its members for a given metric column.
type Bin struct {
	Lo      float64
	Up      float64
	Count   int
	Members []universe.Instrument
}

// Label renders the bin interval as "{lo}%~{up}%".
func (b Bin) Label() string {
	return fmt.Sprintf("%d%%~%d%%", int(b.Lo), int(b.Up))
}

// Bin buckets values and their instruments. values[i] belongs to refs[i].
func (b Binner) Bin(values []float64, refs []universe.Instrument) ([]Bin, error) {
	if len(values) != len(refs) {
		return nil, fmt.Errorf("bin: %d values but %d instruments", len(values), len(refs))
	}
	edges := b.Edges()
	bins := make([]Bin, b.NumBins())
	for i := range bins {
		bins[i].Lo = edges[i]
		bins[i].Up = edges[i+1]
	}
	for i, v := range values {
		idx := b.Assign(v)
		bins[idx].Count++
		bins[idx].Members = append(bins[idx].Members, refs[i])
	}
	return bins, nil
}

// DeepLink renders the detail-page link for one instrument.
func DeepLink(inst universe.Instrument) string {
	return fmt.Sprintf(deepLinkFormat, inst.Code, inst.Code, inst.Name)
}

// TextReport renders the per-bin membership listing. Empty bins are
// omitted; percentages are of the total member count, one decimal place.
func TextReport(bins []Bin) string {
	total := 0
	for _, bn := range bins {
		total += bn.Count
	}

	lines := []string{
		fmt.Sprintf("%-12s | %-14s | 公司清單", "報酬區間", "家數(比例)"),
		strings.Repeat("-", 80),
	}
	for _, bn := range bins {
		if bn.Count == 0 {
			continue
		}
		links := make([]string, 0, len(bn.Members))
		for _, m := range bn.Members {
			links = append(links, DeepLink(m))
		}
		pct := 0.0
		if total > 0 {
			pct = float64(bn.Count) / float64(total) * 100
		}
		lines = append(lines, fmt.Sprintf("%-12s | %4d (%5.1f%%) | %s",
			bn.Label(), bn.Count, pct, strings.Join(links, ", ")))
	}
	return strings.Join(lines, "\n")
}
