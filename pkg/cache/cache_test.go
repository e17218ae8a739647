package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saleschecker/pkg/marketplace"
)

func cacheRange() (time.Time, time.Time) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local)
	return start, start.AddDate(0, 0, 7)
}

func sampleRecords() []marketplace.SalesRecord {
	return []marketplace.SalesRecord{{
		OrderNumber:   "A-1",
		OrderedAt:     time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
		ItemName:      "mug",
		Quantity:      1,
		UnitPrice:     1000,
		LineSubtotal:  1000,
		OrderNetSales: 1000,
		Source:        "store-a",
	}}
}

func TestPutGetRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	start, end := cacheRange()
	records := sampleRecords()

	require.NoError(t, store.Put("store-a", start, end, records))

	got, ok := store.Get("store-a", start, end)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "A-1", got[0].OrderNumber)
	assert.Equal(t, int64(1000), got[0].OrderNetSales)
	assert.True(t, got[0].OrderedAt.Equal(records[0].OrderedAt))
}

func TestGetMissesUnknownKey(t *testing.T) {
	store := New(t.TempDir())
	start, end := cacheRange()

	_, ok := store.Get("nobody", start, end)
	assert.False(t, ok)
}

func TestGetMissesExpiredEntry(t *testing.T) {
	now := time.Now()
	store := New(t.TempDir(),
		WithTTL(time.Hour),
		WithClock(func() time.Time { return now }),
	)
	start, end := cacheRange()
	require.NoError(t, store.Put("store-a", start, end, sampleRecords()))

	_, ok := store.Get("store-a", start, end)
	require.True(t, ok)

	now = now.Add(time.Hour)
	_, ok = store.Get("store-a", start, end)
	assert.False(t, ok)
}

func TestGetTreatsCorruptEntryAsMiss(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	start, end := cacheRange()
	require.NoError(t, store.Put("store-a", start, end, sampleRecords()))

	path := store.keyFor("store-a", start, end)
	require.NoError(t, os.WriteFile(path, []byte("not msgpack"), 0o644))

	_, ok := store.Get("store-a", start, end)
	assert.False(t, ok)
}

func TestPutSkipsEmptyRecordSets(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	start, end := cacheRange()

	require.NoError(t, store.Put("store-a", start, end, nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPutRefreshesExistingEntry(t *testing.T) {
	store := New(t.TempDir())
	start, end := cacheRange()

	require.NoError(t, store.Put("store-a", start, end, sampleRecords()))

	updated := sampleRecords()
	updated[0].OrderNetSales = 9999
	require.NoError(t, store.Put("store-a", start, end, updated))

	got, ok := store.Get("store-a", start, end)
	require.True(t, ok)
	assert.Equal(t, int64(9999), got[0].OrderNetSales)
}

func TestPutSanitizesSourceNames(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	start, end := cacheRange()

	require.NoError(t, store.Put("weird/../name", start, end, sampleRecords()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), "/")
	assert.NotContains(t, entries[0].Name(), "..")

	_, ok := store.Get("weird/../name", start, end)
	assert.True(t, ok)
}

func TestClearRemovesAllEntries(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	start, end := cacheRange()

	require.NoError(t, store.Put("store-a", start, end, sampleRecords()))
	require.NoError(t, store.Put("store-b", start, end, sampleRecords()))
	// Unrelated files survive a clear.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644))

	removed, err := store.Clear()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "notes.txt", entries[0].Name())
}

func TestClearMissingDirIsNoop(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "never-created"))
	removed, err := store.Clear()
	require.NoError(t, err)
	assert.Zero(t, removed)
}
