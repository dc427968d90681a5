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

// Package fetch downloads daily history for a universe of instruments with
// a bounded worker pool. Instruments already completed by a prior run are
// skipped; every instrument ends in exactly one terminal classification and
// no single failure aborts the pool.
package fetch

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/ratelimit"

	"github.com/ashare-lab/kline-scan/series"
	"github.com/ashare-lab/kline-scan/universe"
)

// Outcome is the terminal classification of one instrument.
type Outcome string

const (
	OutcomeSuccess Outcome = "success" // fetched and persisted
	OutcomeExists  Outcome = "exists"  // resumable record found, not re-fetched
	OutcomeEmpty   Outcome = "empty"   // provider returned no bars
	OutcomeError   Outcome = "error"   // fetch, normalize or persist failed
)

// Result is the per-instrument outcome, kept inspectable rather than
// collapsed into a counter at the point of failure.
type Result struct {
	Instrument universe.Instrument
	Outcome    Outcome
	Err        error
}

// Counts aggregates outcomes over a run.
type Counts struct {
	Success int
	Exists  int
	Empty   int
	Error   int
}

// Total returns the number of classified instruments.
func (c Counts) Total() int { return c.Success + c.Exists + c.Empty + c.Error }

// Tally folds per-instrument results into aggregate counts.
func Tally(results []Result) Counts {
	var c Counts
	for _, r := range results {
		switch r.Outcome {
		case OutcomeSuccess:
			c.Success++
		case OutcomeExists:
			c.Exists++
		case OutcomeEmpty:
			c.Empty++
		default:
			c.Error++
		}
	}
	return c
}

// QuoteClient fetches the trailing daily history for one instrument code.
type QuoteClient interface {
	History(ctx context.Context, code, window string) ([]series.Bar, error)
}

// Config tunes a Pool.
type Config struct {
	Workers    int           // concurrent fetchers, default 4
	Window     string        // trailing history window, default "2y"
	Timeout    time.Duration // per-fetch deadline, default 20s
	JitterMin  time.Duration // randomized pre-request delay bounds
	JitterMax  time.Duration
	RatePerSec int  // shared request budget across workers, 0 disables
	Progress   bool // render a progress bar
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Workers == 0 {
		out.Workers = 4
	}
	if out.Window == "" {
		out.Window = "2y"
	}
	if out.Timeout == 0 {
		out.Timeout = 20 * time.Second
	}
	if out.JitterMin == 0 && out.JitterMax == 0 {
		out.JitterMin = 300 * time.Millisecond
		out.JitterMax = 800 * time.Millisecond
	}
	return out
}

// Pool is the bounded-concurrency fetch runner.
type Pool struct {
	cfg    Config
	store  *series.Store
	quotes QuoteClient
	limit  ratelimit.Limiter
}

// NewPool validates the configuration; an invalid pool setup is the only
// fatal error in the fetch stage.
func NewPool(cfg Config, store *series.Store, quotes QuoteClient) (*Pool, error) {
	cfg = cfg.withDefaults()
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("pool workers must be positive, got %d", cfg.Workers)
	}
	if cfg.JitterMax < cfg.JitterMin {
		return nil, fmt.Errorf("pool jitter bounds inverted: %v > %v", cfg.JitterMin, cfg.JitterMax)
	}
	p := &Pool{cfg: cfg, store: store, quotes: quotes}
	if cfg.RatePerSec > 0 {
		p.limit = ratelimit.New(cfg.RatePerSec)
	} else {
		p.limit = ratelimit.NewUnlimited()
	}
	return p, nil
}

// Run processes every instrument and returns the per-instrument results in
// no particular order. Completion order is irrelevant; only classifications
// matter.
func (p *Pool) Run(ctx context.Context, instruments []universe.Instrument) []Result {
	jobs := make(chan universe.Instrument)
	out := make(chan Result)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for inst := range jobs {
				out <- p.fetchOne(ctx, inst)
			}
		}()
	}
	go func() {
		for _, inst := range instruments {
			jobs <- inst
		}
		close(jobs)
		wg.Wait()
		close(out)
	}()

	var bar *progressbar.ProgressBar
	if p.cfg.Progress {
		bar = progressbar.Default(int64(len(instruments)))
	}
	results := make([]Result, 0, len(instruments))
	for r := range out {
		if bar != nil {
			bar.Add(1)
		}
		if r.Err != nil {
			log.Debug().Err(r.Err).Str("code", r.Instrument.Code).Str("outcome", string(r.Outcome)).Msg("instrument not downloaded")
		}
		results = append(results, r)
	}
	return results
}

// fetchOne runs the resume check, jittered fetch, normalization and
// persistence for a single instrument. All failures are downgraded to an
// error classification.
func (p *Pool) fetchOne(ctx context.Context, inst universe.Instrument) Result {
	if p.store.Resumable(inst.Code, inst.Name) {
		return Result{Instrument: inst, Outcome: OutcomeExists}
	}

	// Spread requests out so the provider does not rate limit us.
	if span := p.cfg.JitterMax - p.cfg.JitterMin; span > 0 {
		time.Sleep(p.cfg.JitterMin + time.Duration(rand.Int63n(int64(span))))
	}
	p.limit.Take()

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	bars, err := p.quotes.History(fetchCtx, inst.Code, p.cfg.Window)
	if err != nil {
		return Result{Instrument: inst, Outcome: OutcomeError, Err: err}
	}
	bars = Normalize(bars)
	if len(bars) == 0 {
		return Result{Instrument: inst, Outcome: OutcomeEmpty}
	}
	if err := p.store.Write(inst.Code, inst.Name, bars); err != nil {
		return Result{Instrument: inst, Outcome: OutcomeError, Err: err}
	}
	return Result{Instrument: inst, Outcome: OutcomeSuccess}
}

// Normalize sorts bars chronologically and strips timezone information,
// keeping the calendar date only.
func Normalize(bars []series.Bar) []series.Bar {
	for i, b := range bars {
		y, m, d := b.Date.Date()
		bars[i].Date = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars
}
