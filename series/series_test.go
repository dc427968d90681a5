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
package series

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "600519_貴州茅台.csv", FileName("600519", "貴州茅台"))

	code, name := SplitFileName("600519_貴州茅台.csv")
	assert.Equal(t, "600519", code)
	assert.Equal(t, "貴州茅台", name)

	// Names may themselves contain underscores; only the first one splits.
	code, name = SplitFileName("000001_PING_AN.csv")
	assert.Equal(t, "000001", code)
	assert.Equal(t, "PING_AN", name)

	code, name = SplitFileName("600519.csv")
	assert.Equal(t, "600519", code)
	assert.Equal(t, "600519", name)
}

func TestWriteReadRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir(), 100)
	require.NoError(t, err)

	bars := []Bar{
		{Date: day("2024-01-02"), Open: 10, High: 11.5, Low: 9.75, Close: 11, Volume: 1000},
		{Date: day("2024-01-03"), Open: 11, High: 12, Low: 10.5, Close: 11.25, Volume: 2500},
	}
	require.NoError(t, store.Write("600519", "貴州茅台", bars))

	got, err := store.Read("600519", "貴州茅台")
	require.NoError(t, err)
	assert.Equal(t, bars, got)
}

func TestResumable(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 50)
	require.NoError(t, err)

	assert.False(t, store.Exists("000001", "平安銀行"))
	assert.False(t, store.Resumable("000001", "平安銀行"))

	// A too-small file counts as existing but not as a completed download.
	require.NoError(t, os.WriteFile(store.Path("000001", "平安銀行"), []byte("stub"), 0o644))
	assert.True(t, store.Exists("000001", "平安銀行"))
	assert.False(t, store.Resumable("000001", "平安銀行"))

	require.NoError(t, os.WriteFile(store.Path("000001", "平安銀行"), make([]byte, 50), 0o644))
	assert.True(t, store.Resumable("000001", "平安銀行"))
}

func TestReadRejectsMalformedFile(t *testing.T) {
	store, err := NewStore(t.TempDir(), 100)
	require.NoError(t, err)

	path := store.Path("300001", "特銳德")
	require.NoError(t, os.WriteFile(path, []byte("date,open,high,low,close,volume\nnot-a-date,1,2,3,4,5\n"), 0o644))

	_, err = store.Read("300001", "特銳德")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 100)
	require.NoError(t, err)

	bars := []Bar{{Date: day("2024-01-02"), Close: 1}}
	require.NoError(t, store.Write("600519", "貴州茅台", bars))
	require.NoError(t, store.Write("000001", "平安銀行", bars))

	// Non-CSV files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	keys, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []Key{
		{Code: "000001", Name: "平安銀行"},
		{Code: "600519", Name: "貴州茅台"},
	}, keys)
}
