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
	"os"
	"path/filepath"
	"strings"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/ashare-lab/kline-scan/universe"
)

// Display labels per horizon and return kind.
var (
	horizonLabels = map[string]string{"Week": "週K", "Month": "月K", "Year": "年K"}
	kindLabels    = map[string]string{"High": "最高-進攻", "Close": "收盤-實質", "Low": "最低-防禦"}
)

// ChartSpec is the structured hand-off to the rendering collaborator: bin
// edges, per-bin counts, a display title and an output identifier. The core
// never inspects the rendered artifact.
type ChartSpec struct {
	ID     string
	Title  string
	Edges  []float64
	Counts []int
}

// Renderer produces an image artifact for one chart spec.
type Renderer interface {
	Render(spec ChartSpec, path string) error
}

// BuildCharts produces one spec per horizon × return kind that has at least
// one present value across rows. Counts keep empty bins in place so chart
// slots line up with the edges.
func BuildCharts(rows []Row, binner Binner) []ChartSpec {
	specs := make([]ChartSpec, 0, len(Horizons)*len(ReturnKinds))
	for _, h := range Horizons {
		for _, kind := range ReturnKinds {
			column := h.Label + "_" + kind
			values := ColumnValues(rows, column)
			if len(values) == 0 {
				continue
			}
			specs = append(specs, ChartSpec{
				ID:     strings.ToLower(column),
				Title:  fmt.Sprintf("%s %s 報酬分布", horizonLabels[h.Label], kindLabels[kind]),
				Edges:  binner.Edges(),
				Counts: binner.Histogram(values),
			})
		}
	}
	return specs
}

// ColumnValues extracts the present values of one metric column.
func ColumnValues(rows []Row, column string) []float64 {
	values := make([]float64, 0, len(rows))
	for i := range rows {
		if v, ok := rows[i].Metric(column); ok {
			values = append(values, v)
		}
	}
	return values
}

// ColumnMembers extracts the present values of one metric column together
// with the owning instruments, index-aligned.
func ColumnMembers(rows []Row, column string) ([]float64, []universe.Instrument) {
	values := make([]float64, 0, len(rows))
	refs := make([]universe.Instrument, 0, len(rows))
	for i := range rows {
		if v, ok := rows[i].Metric(column); ok {
			values = append(values, v)
			refs = append(refs, universe.Instrument{Code: rows[i].Ticker, Name: rows[i].FullID})
		}
	}
	return values, refs
}

// PNGRenderer renders chart specs as bar-chart PNGs under Dir, one file per
// spec named by its output id.
type PNGRenderer struct {
	Dir string
}

// NewPNGRenderer creates the output directory if needed.
func NewPNGRenderer(dir string) (*PNGRenderer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir %s: %w", dir, err)
	}
	return &PNGRenderer{Dir: dir}, nil
}

// Path returns the artifact location for a spec id.
func (r *PNGRenderer) Path(id string) string {
	return filepath.Join(r.Dir, id+".png")
}

// Render writes one bar chart.
func (r *PNGRenderer) Render(spec ChartSpec, path string) error {
	bars := make([]chart.Value, 0, len(spec.Counts))
	for i, c := range spec.Counts {
		bars = append(bars, chart.Value{
			Value: float64(c),
			Label: fmt.Sprintf("%d", int(spec.Edges[i])),
		})
	}
	bc := chart.BarChart{
		Title:    spec.Title,
		Width:    1100,
		Height:   700,
		BarWidth: 40,
		Bars:     bars,
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	defer f.Close()
	if err := bc.Render(chart.PNG, f); err != nil {
		return fmt.Errorf("render %s: %w", spec.ID, err)
	}
	return nil
}
