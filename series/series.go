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

// Package series persists one daily-bar history per instrument as a CSV
// file under a single directory. The file name doubles as the storage key,
// so resume detection across runs only depends on the instrument code and
// display name staying stable.
package series

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Bar is a single daily OHLCV record. Dates carry no timezone; a bar is
// identified by its calendar date alone.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Key identifies one stored series.
type Key struct {
	Code string
	Name string
}

// Store reads and writes per-instrument CSV series below Dir.
type Store struct {
	dir            string
	minResumeBytes int64
}

// NewStore creates the storage directory if needed. MinResumeBytes is the
// minimum file size for an existing record to count as a completed prior
// download rather than a zero-byte or truncated artifact.
func NewStore(dir string, minResumeBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create series dir %s: %w", dir, err)
	}
	return &Store{dir: dir, minResumeBytes: minResumeBytes}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

// FileName derives the storage key for an instrument. The scheme
// (<code>_<name>.csv) is a contract: it must stay stable across runs for
// resume detection to work.
func FileName(code, name string) string {
	return fmt.Sprintf("%s_%s.csv", code, name)
}

// SplitFileName recovers (code, name) from a storage key produced by
// FileName. A key without an underscore yields the stem for both parts.
func SplitFileName(fn string) (code, name string) {
	stem := strings.TrimSuffix(fn, filepath.Ext(fn))
	if i := strings.Index(stem, "_"); i >= 0 {
		return stem[:i], stem[i+1:]
	}
	return stem, stem
}

// Path returns the absolute file path for an instrument.
func (s *Store) Path(code, name string) string {
	return filepath.Join(s.dir, FileName(code, name))
}

// Exists reports whether any record is present for the instrument.
func (s *Store) Exists(code, name string) bool {
	_, err := os.Stat(s.Path(code, name))
	return err == nil
}

// Resumable reports whether a prior run already completed this instrument:
// the record exists and is at least minResumeBytes long.
func (s *Store) Resumable(code, name string) bool {
	fi, err := os.Stat(s.Path(code, name))
	return err == nil && fi.Size() >= s.minResumeBytes
}

// Write replaces the stored series for an instrument. Records are written
// whole, never appended.
func (s *Store) Write(code, name string, bars []Bar) error {
	f, err := os.Create(s.Path(code, name))
	if err != nil {
		return fmt.Errorf("create series file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"date", "open", "high", "low", "close", "volume"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, b := range bars {
		rec := []string{
			b.Date.Format(dateLayout),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatInt(b.Volume, 10),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write bar: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush series file: %w", err)
	}
	return nil
}

// Read loads the stored series for an instrument in file order.
func (s *Store) Read(code, name string) ([]Bar, error) {
	f, err := os.Open(s.Path(code, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", FileName(code, name), err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read %s: empty file", FileName(code, name))
	}

	bars := make([]Bar, 0, len(rows)-1)
	for _, row := range rows[1:] { // skip header
		if len(row) < 6 {
			return nil, fmt.Errorf("read %s: short row %v", FileName(code, name), row)
		}
		var b Bar
		if b.Date, err = time.Parse(dateLayout, row[0]); err != nil {
			return nil, fmt.Errorf("read %s: bad date %q: %w", FileName(code, name), row[0], err)
		}
		if b.Open, err = strconv.ParseFloat(row[1], 64); err != nil {
			return nil, fmt.Errorf("read %s: bad open %q: %w", FileName(code, name), row[1], err)
		}
		if b.High, err = strconv.ParseFloat(row[2], 64); err != nil {
			return nil, fmt.Errorf("read %s: bad high %q: %w", FileName(code, name), row[2], err)
		}
		if b.Low, err = strconv.ParseFloat(row[3], 64); err != nil {
			return nil, fmt.Errorf("read %s: bad low %q: %w", FileName(code, name), row[3], err)
		}
		if b.Close, err = strconv.ParseFloat(row[4], 64); err != nil {
			return nil, fmt.Errorf("read %s: bad close %q: %w", FileName(code, name), row[4], err)
		}
		if b.Volume, err = strconv.ParseInt(row[5], 10, 64); err != nil {
			return nil, fmt.Errorf("read %s: bad volume %q: %w", FileName(code, name), row[5], err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// List enumerates every stored series key, sorted by file name.
func (s *Store) List() ([]Key, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	keys := make([]Key, 0, len(matches))
	for _, m := range matches {
		code, name := SplitFileName(filepath.Base(m))
		keys = append(keys, Key{Code: code, Name: name})
	}
	return keys, nil
}
