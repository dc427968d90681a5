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

// Package universe resolves the set of instruments to process. Resolution
// never fails outright: a same-day cache is preferred, then a retried remote
// fetch, then a stale cache, and as a last resort a hardcoded minimal set so
// downstream stages stay exercisable.
package universe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Instrument is one tradable security.
type Instrument struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// String renders the cache-file form "<code>&<name>".
func (i Instrument) String() string { return i.Code + "&" + i.Name }

// ParseInstrument parses the cache-file form "<code>&<name>".
func ParseInstrument(s string) (Instrument, error) {
	code, name, ok := strings.Cut(s, "&")
	if !ok {
		return Instrument{}, fmt.Errorf("malformed instrument entry %q", s)
	}
	return Instrument{Code: code, Name: name}, nil
}

// Source records how a snapshot was obtained; StaleCache and Minimal are the
// degraded modes operators need to be able to see.
type Source string

const (
	SourceRemote     Source = "remote"
	SourceTodayCache Source = "cache"
	SourceStaleCache Source = "stale-cache"
	SourceMinimal    Source = "minimal"
)

// Snapshot is one resolved universe.
type Snapshot struct {
	Instruments []Instrument
	CapturedAt  time.Time
	Source      Source
}

// Degraded reports whether the snapshot came from a fallback path rather
// than a fresh, threshold-passing listing.
func (s *Snapshot) Degraded() bool {
	return s.Source == SourceStaleCache || s.Source == SourceMinimal
}

// Lister fetches the raw instrument listing from the remote provider.
type Lister interface {
	Listing(ctx context.Context) ([]Instrument, error)
}

// Prefix classes recognized as listed A-share codes. Anything else
// (indices, funds, B shares) is filtered out of the universe.
var validPrefixes = []string{
	"000", "001", "002", "003",
	"300", "301", "302",
	"600", "601", "603", "605", "688", "689",
}

// minimalSet keeps the pipeline exercisable when every other path fails.
var minimalSet = []Instrument{
	{Code: "600519", Name: "貴州茅台"},
	{Code: "000001", Name: "平安銀行"},
}

// Config tunes a Provider. Zero values fall back to production defaults;
// Sleep and Now are injectable so tests run without real delays.
type Config struct {
	Market      string
	CacheDir    string
	Threshold   int                             // minimum instrument count for a listing to be trusted
	MaxAttempts int                             // remote fetch attempts
	Backoff     func(attempt int) time.Duration // wait before retrying attempt (1-based)
	Sleep       func(time.Duration)
	Now         func() time.Time
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Threshold == 0 {
		out.Threshold = 4000
	}
	if out.MaxAttempts == 0 {
		out.MaxAttempts = 3
	}
	if out.Backoff == nil {
		out.Backoff = func(attempt int) time.Duration { return time.Duration(attempt) * 5 * time.Second }
	}
	if out.Sleep == nil {
		out.Sleep = time.Sleep
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return out
}

// Provider resolves universe snapshots.
type Provider struct {
	cfg    Config
	lister Lister
}

// NewProvider creates the cache directory if needed.
func NewProvider(cfg Config, lister Lister) (*Provider, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create list cache dir %s: %w", cfg.CacheDir, err)
	}
	return &Provider{cfg: cfg.withDefaults(), lister: lister}, nil
}

// CachePath returns the universe cache file for this market.
func (p *Provider) CachePath() string {
	return filepath.Join(p.cfg.CacheDir, p.cfg.Market+"_stock_list_cache.json")
}

// Resolve returns a usable snapshot. It never returns an error: every
// failure mode degrades to a weaker source, recorded on the snapshot.
func (p *Provider) Resolve(ctx context.Context) *Snapshot {
	subLog := log.With().Str("market", p.cfg.Market).Logger()

	// 1. Same-day cache that passes the sanity floor.
	if insts, mtime, err := p.loadCache(); err == nil {
		if sameDay(mtime, p.cfg.Now()) && len(insts) >= p.cfg.Threshold {
			subLog.Info().Int("count", len(insts)).Msg("using today's cached instrument list")
			return &Snapshot{Instruments: insts, CapturedAt: mtime, Source: SourceTodayCache}
		}
	} else if !os.IsNotExist(err) {
		subLog.Warn().Err(err).Msg("could not read instrument list cache")
	}

	// 2. Remote retrieval with linear backoff.
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		subLog.Info().Int("attempt", attempt).Int("maxAttempts", p.cfg.MaxAttempts).Msg("fetching instrument listing")
		insts, err := p.fetchOnce(ctx)
		switch {
		case err != nil:
			subLog.Error().Err(err).Int("attempt", attempt).Msg("listing fetch failed")
		case len(insts) < p.cfg.Threshold:
			subLog.Warn().Int("count", len(insts)).Int("threshold", p.cfg.Threshold).Msg("listing below sanity floor, retrying")
		default:
			subLog.Info().Int("count", len(insts)).Msg("instrument listing accepted")
			if err := p.saveCache(insts); err != nil {
				subLog.Warn().Err(err).Msg("could not write instrument list cache")
			}
			return &Snapshot{Instruments: insts, CapturedAt: p.cfg.Now(), Source: SourceRemote}
		}
		if attempt < p.cfg.MaxAttempts {
			wait := p.cfg.Backoff(attempt)
			subLog.Info().Dur("wait", wait).Msg("backing off before retry")
			p.cfg.Sleep(wait)
		}
	}

	// 3. Stale cache, whatever its date.
	if insts, mtime, err := p.loadCache(); err == nil && len(insts) > 0 {
		subLog.Warn().Int("count", len(insts)).Time("capturedAt", mtime).Msg("all attempts failed, falling back to stale cache")
		return &Snapshot{Instruments: insts, CapturedAt: mtime, Source: SourceStaleCache}
	}

	// 4. Last resort.
	subLog.Error().Msg("no listing and no cache available, using minimal instrument set")
	return &Snapshot{Instruments: minimalSet, CapturedAt: p.cfg.Now(), Source: SourceMinimal}
}

// fetchOnce pulls one raw listing and normalizes it: codes zero-padded to
// six digits and filtered to the recognized prefix classes.
func (p *Provider) fetchOnce(ctx context.Context) ([]Instrument, error) {
	raw, err := p.lister.Listing(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Instrument, 0, len(raw))
	for _, inst := range raw {
		inst.Code = NormalizeCode(inst.Code)
		if !hasValidPrefix(inst.Code) {
			continue
		}
		out = append(out, inst)
	}
	return out, nil
}

// NormalizeCode left-pads a numeric code to the fixed six-digit width.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	for len(code) < 6 {
		code = "0" + code
	}
	return code
}

func hasValidPrefix(code string) bool {
	for _, p := range validPrefixes {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (p *Provider) loadCache() ([]Instrument, time.Time, error) {
	fi, err := os.Stat(p.CachePath())
	if err != nil {
		return nil, time.Time{}, err
	}
	data, err := os.ReadFile(p.CachePath())
	if err != nil {
		return nil, time.Time{}, err
	}
	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, time.Time{}, fmt.Errorf("parse cache: %w", err)
	}
	insts := make([]Instrument, 0, len(entries))
	for _, e := range entries {
		inst, err := ParseInstrument(e)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("parse cache: %w", err)
		}
		insts = append(insts, inst)
	}
	return insts, fi.ModTime(), nil
}

func (p *Provider) saveCache(insts []Instrument) error {
	entries := make([]string, 0, len(insts))
	for _, inst := range insts {
		entries = append(entries, inst.String())
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(p.CachePath(), data, 0o644)
}
