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

// Package analyze computes cross-sectional trailing-window return summaries
// over the stored series and reports their distribution as fixed-width-bin
// histograms with per-bin membership.
package analyze

import (
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/ashare-lab/kline-scan/series"
)

// Horizon is one trailing lookback window measured in trading bars.
type Horizon struct {
	Label string
	Days  int
}

// Horizons are the three fixed lookback windows.
var Horizons = []Horizon{
	{Label: "Week", Days: 5},
	{Label: "Month", Days: 20},
	{Label: "Year", Days: 250},
}

// ReturnKinds are the three per-horizon metrics.
var ReturnKinds = []string{"High", "Close", "Low"}

// minBars is the shortest series worth summarizing; anything below carries
// too little history for even the Week horizon to be reliable.
const minBars = 20

// Row holds the computed metrics for one instrument, in percent. Fields are
// nil (absent, not zero) when the series is too short for that horizon or
// the reference close is zero. Parquet tags support the optional summary
// export.
type Row struct {
	Ticker     string   `parquet:"name=ticker, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	FullID     string   `parquet:"name=full_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	WeekHigh   *float64 `parquet:"name=week_high, type=DOUBLE, repetitiontype=OPTIONAL"`
	WeekClose  *float64 `parquet:"name=week_close, type=DOUBLE, repetitiontype=OPTIONAL"`
	WeekLow    *float64 `parquet:"name=week_low, type=DOUBLE, repetitiontype=OPTIONAL"`
	MonthHigh  *float64 `parquet:"name=month_high, type=DOUBLE, repetitiontype=OPTIONAL"`
	MonthClose *float64 `parquet:"name=month_close, type=DOUBLE, repetitiontype=OPTIONAL"`
	MonthLow   *float64 `parquet:"name=month_low, type=DOUBLE, repetitiontype=OPTIONAL"`
	YearHigh   *float64 `parquet:"name=year_high, type=DOUBLE, repetitiontype=OPTIONAL"`
	YearClose  *float64 `parquet:"name=year_close, type=DOUBLE, repetitiontype=OPTIONAL"`
	YearLow    *float64 `parquet:"name=year_low, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// Metric returns the named column ("Week_High", "Year_Close", ...) and
// whether it is present on this row.
func (r *Row) Metric(column string) (float64, bool) {
	var p *float64
	switch column {
	case "Week_High":
		p = r.WeekHigh
	case "Week_Close":
		p = r.WeekClose
	case "Week_Low":
		p = r.WeekLow
	case "Month_High":
		p = r.MonthHigh
	case "Month_Close":
		p = r.MonthClose
	case "Month_Low":
		p = r.MonthLow
	case "Year_High":
		p = r.YearHigh
	case "Year_Close":
		p = r.YearClose
	case "Year_Low":
		p = r.YearLow
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

func (r *Row) setMetric(horizon, kind string, v float64) {
	p := &v
	switch horizon + "_" + kind {
	case "Week_High":
		r.WeekHigh = p
	case "Week_Close":
		r.WeekClose = p
	case "Week_Low":
		r.WeekLow = p
	case "Month_High":
		r.MonthHigh = p
	case "Month_Close":
		r.MonthClose = p
	case "Month_Low":
		r.MonthLow = p
	case "Year_High":
		r.YearHigh = p
	case "Year_Close":
		r.YearClose = p
	case "Year_Low":
		r.YearLow = p
	}
}

// Aggregator computes a Row per stored series.
type Aggregator struct {
	store    *series.Store
	progress bool
}

// NewAggregator reads series from store; Progress renders a bar over the
// scan.
func NewAggregator(store *series.Store, progress bool) *Aggregator {
	return &Aggregator{store: store, progress: progress}
}

// ComputeAll scans every stored series and returns one Row per instrument
// with at least minBars bars. A malformed series skips that instrument, not
// the run.
func (a *Aggregator) ComputeAll() ([]Row, error) {
	keys, err := a.store.List()
	if err != nil {
		return nil, err
	}

	var bar *progressbar.ProgressBar
	if a.progress {
		bar = progressbar.Default(int64(len(keys)))
	}
	rows := make([]Row, 0, len(keys))
	for _, key := range keys {
		if bar != nil {
			bar.Add(1)
		}
		bars, err := a.store.Read(key.Code, key.Name)
		if err != nil {
			log.Warn().Err(err).Str("code", key.Code).Msg("skipping unreadable series")
			continue
		}
		if len(bars) < minBars {
			continue
		}
		rows = append(rows, ComputeRow(key.Code, key.Name, bars))
	}
	return rows, nil
}

// ComputeRow evaluates every horizon over one series. For a horizon of n
// days the reference close sits immediately before the trailing window, at
// index len-n-1; the horizon is skipped when the series is not longer than
// n bars or the reference close is zero.
func ComputeRow(ticker, fullID string, bars []series.Bar) Row {
	row := Row{Ticker: ticker, FullID: fullID}
	n := len(bars)
	for _, h := range Horizons {
		if n <= h.Days {
			continue
		}
		prevClose := bars[n-h.Days-1].Close
		if prevClose == 0 {
			continue
		}
		window := bars[n-h.Days:]
		hi, lo := window[0].High, window[0].Low
		for _, b := range window[1:] {
			if b.High > hi {
				hi = b.High
			}
			if b.Low < lo {
				lo = b.Low
			}
		}
		row.setMetric(h.Label, "High", (hi-prevClose)/prevClose*100)
		row.setMetric(h.Label, "Close", (bars[n-1].Close-prevClose)/prevClose*100)
		row.setMetric(h.Label, "Low", (lo-prevClose)/prevClose*100)
	}
	return row
}
