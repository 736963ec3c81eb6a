package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian/vanguard/pkg/types"
)

func testEvent(ts time.Time, source, entity string) *types.UnifiedEvent {
	return &types.UnifiedEvent{
		EntityID:           entity,
		EntityType:         types.EntityUser,
		EventType:          types.EventAPICall,
		Timestamp:          ts,
		Success:            true,
		SourceIP:           "203.0.113.7",
		SourceIPAnonymized: "203.0.113.XXX",
		SourceSystem:       source,
		PipelineVersion:    types.PipelineVersion,
		Temporal:           types.DeriveTemporal(ts),
	}
}

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return NewWriter(store, DefaultConfig())
}

// TestPartitionKey tests key derivation and the object path layout
func TestPartitionKey(t *testing.T) {
	ts := time.Date(2024, 3, 13, 14, 25, 0, 0, time.UTC)
	e := testEvent(ts, "api_access", "u")

	key := KeyFor(e)
	assert.Equal(t, "2024-03-13", key.Date)
	assert.Equal(t, 14, key.Hour)
	assert.Equal(t, "api_access", key.Source)
	assert.Equal(t, "hot/date=2024-03-13/hour=14/source=api_access/events.parquet", key.Path(TierHot))
}

// TestPartitionKeyUsesUTC tests that partitioning follows the UTC instant
func TestPartitionKeyUsesUTC(t *testing.T) {
	zone := time.FixedZone("UTC-5", -5*3600)
	ts := time.Date(2024, 3, 13, 22, 0, 0, 0, zone) // 03:00 UTC next day

	key := KeyFor(testEvent(ts, "cloud_audit", "u"))
	assert.Equal(t, "2024-03-14", key.Date)
	assert.Equal(t, 3, key.Hour)
}

// TestParseKey tests round-tripping object keys
func TestParseKey(t *testing.T) {
	tier, key, ok := ParseKey("warm/date=2024-03-13/hour=07/source=cloud_audit/events.parquet")
	require.True(t, ok)
	assert.Equal(t, TierWarm, tier)
	assert.Equal(t, PartitionKey{Date: "2024-03-13", Hour: 7, Source: "cloud_audit"}, key)

	for _, bad := range []string{
		"hot/date=2024-03-13/events.parquet",
		"hot/d=2024-03-13/hour=07/source=x/events.parquet",
		"hot/date=2024-03-13/hour=24/source=x/events.parquet",
		"hot/date=2024-03-13/hour=ab/source=x/events.parquet",
	} {
		_, _, ok := ParseKey(bad)
		assert.False(t, ok, "key %q", bad)
	}
}

// TestRowFromEventOmitsRawAddress tests that only the anonymized address is
// persisted
func TestRowFromEventOmitsRawAddress(t *testing.T) {
	e := testEvent(time.Now().UTC(), "api_access", "u")
	row := RowFromEvent(e)

	assert.Equal(t, "203.0.113.XXX", row.SourceIPAnonymized)
	assert.NotContains(t, row.SourceSpecific, "203.0.113.7")
}

// TestWriterWriteAndRead tests a flush followed by a windowed read
func TestWriterWriteAndRead(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)

	events := []*types.UnifiedEvent{
		testEvent(base, "api_access", "a"),
		testEvent(base.Add(5*time.Minute), "api_access", "b"),
		testEvent(base.Add(time.Hour), "api_access", "c"),   // next hour partition
		testEvent(base.Add(time.Minute), "cloud_audit", "d"), // other source
	}
	require.NoError(t, w.Write(ctx, events, TierHot))

	rows, err := w.Read(ctx, base, base.Add(2*time.Hour), "", []Tier{TierHot})
	require.NoError(t, err)
	require.Len(t, rows, 4)

	// Rows come back in timestamp order across partitions
	for i := 1; i < len(rows); i++ {
		assert.False(t, rows[i].Timestamp.Before(rows[i-1].Timestamp))
	}
}

// TestWriterReadFiltersSourceAndWindow tests the row-level filters
func TestWriterReadFiltersSourceAndWindow(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)

	require.NoError(t, w.Write(ctx, []*types.UnifiedEvent{
		testEvent(base, "api_access", "a"),
		testEvent(base.Add(10*time.Minute), "api_access", "b"),
		testEvent(base.Add(5*time.Minute), "cloud_audit", "c"),
	}, TierHot))

	rows, err := w.Read(ctx, base, base.Add(time.Hour), "cloud_audit", []Tier{TierHot})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c", rows[0].EntityID)

	// Window trims to the exact timestamps
	rows, err = w.Read(ctx, base.Add(time.Minute), base.Add(6*time.Minute), "", []Tier{TierHot})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c", rows[0].EntityID)
}

// TestWriterMergesExistingPartition tests that a second flush into the same
// partition appends instead of overwriting
func TestWriterMergesExistingPartition(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)

	require.NoError(t, w.Write(ctx, []*types.UnifiedEvent{testEvent(base, "api_access", "a")}, TierHot))
	require.NoError(t, w.Write(ctx, []*types.UnifiedEvent{testEvent(base.Add(time.Minute), "api_access", "b")}, TierHot))

	rows, err := w.Read(ctx, base, base.Add(time.Hour), "", []Tier{TierHot})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].EntityID)
	assert.Equal(t, "b", rows[1].EntityID)
}

// TestWriterRejectsUnknownCodec tests compression validation
func TestWriterRejectsUnknownCodec(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.HotCompression = "lz9"
	w := NewWriter(store, cfg)

	err = w.Write(context.Background(), []*types.UnifiedEvent{testEvent(time.Now(), "api_access", "a")}, TierHot)
	assert.Error(t, err)
}

// TestSelectTiers tests tier derivation from the retention policy
func TestSelectTiers(t *testing.T) {
	cfg := DefaultConfig() // 7/30/90 days
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  []Tier
	}{
		{
			name:  "recent window stays hot",
			start: now.Add(-2 * day),
			end:   now,
			want:  []Tier{TierHot},
		},
		{
			name:  "window straddling hot edge",
			start: now.Add(-10 * day),
			end:   now,
			want:  []Tier{TierHot, TierWarm},
		},
		{
			name:  "warm only",
			start: now.Add(-20 * day),
			end:   now.Add(-10 * day),
			want:  []Tier{TierWarm},
		},
		{
			name:  "all three tiers",
			start: now.Add(-60 * day),
			end:   now,
			want:  []Tier{TierHot, TierWarm, TierCold},
		},
		{
			name:  "cold only",
			start: now.Add(-80 * day),
			end:   now.Add(-40 * day),
			want:  []Tier{TierCold},
		},
		{
			name:  "beyond cold falls back to hot",
			start: now.Add(-200 * day),
			end:   now.Add(-150 * day),
			want:  []Tier{TierHot},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectTiers(now, tt.start, tt.end, cfg))
		})
	}
}

// TestLifecycle tests age-based migration and expiry over a local store
func TestLifecycle(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	cfg := DefaultConfig()
	w := NewWriter(store, cfg)
	ctx := context.Background()

	now := time.Now().UTC()
	aged := func(key string, age time.Duration) {
		require.NoError(t, store.Put(ctx, key, []byte("parquet-bytes")))
		mtime := now.Add(-age)
		require.NoError(t, os.Chtimes(filepath.Join(root, filepath.FromSlash(key)), mtime, mtime))
	}

	fresh := "hot/date=2024-03-30/hour=10/source=api_access/events.parquet"
	oldHot := "hot/date=2024-03-01/hour=10/source=api_access/events.parquet"
	oldWarm := "warm/date=2024-02-01/hour=10/source=api_access/events.parquet"
	expired := "cold/date=2023-11-01/hour=10/source=api_access/events.parquet"

	aged(fresh, 24*time.Hour)
	aged(oldHot, 8*24*time.Hour)
	aged(oldWarm, 31*24*time.Hour)
	aged(expired, 91*24*time.Hour)

	require.NoError(t, w.Lifecycle(ctx))

	exists := func(key string) bool {
		ok, err := store.Exists(ctx, key)
		require.NoError(t, err)
		return ok
	}

	assert.True(t, exists(fresh), "fresh hot object stays")
	assert.False(t, exists(oldHot), "aged hot object moved out")
	assert.True(t, exists("warm/date=2024-03-01/hour=10/source=api_access/events.parquet"))
	assert.False(t, exists(oldWarm), "aged warm object moved out")
	assert.True(t, exists("cold/date=2024-02-01/hour=10/source=api_access/events.parquet"))
	assert.False(t, exists(expired), "expired cold object deleted")
}

// TestRunLifecyclePeriodic tests that the timer-driven loop migrates aged
// objects without an external trigger and stops on cancel
func TestRunLifecyclePeriodic(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	w := NewWriter(store, DefaultConfig())

	key := "hot/date=2024-03-01/hour=10/source=api_access/events.parquet"
	require.NoError(t, store.Put(context.Background(), key, []byte("parquet-bytes")))
	mtime := time.Now().UTC().Add(-8 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, filepath.FromSlash(key)), mtime, mtime))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.RunLifecycle(ctx, 20*time.Millisecond)
		close(done)
	}()

	moved := "warm/date=2024-03-01/hour=10/source=api_access/events.parquet"
	assert.Eventually(t, func() bool {
		ok, err := store.Exists(context.Background(), moved)
		return err == nil && ok
	}, 2*time.Second, 10*time.Millisecond, "aged hot object migrated by the timer")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lifecycle loop did not stop on cancel")
	}
}

// TestLocalStorePublishIsAtomic tests that temp files never show up in a
// listing
func TestLocalStorePublishIsAtomic(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "hot/date=2024-03-13/hour=10/source=x/events.parquet", []byte("data")))

	// A stray temp file from an interrupted write is invisible
	stray := filepath.Join(root, "hot", "date=2024-03-13", "hour=10", "source=x", ".tmp-123")
	require.NoError(t, os.WriteFile(stray, []byte("partial"), 0o644))

	objects, err := store.List(ctx, "hot/")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "hot/date=2024-03-13/hour=10/source=x/events.parquet", objects[0].Key)
}

// TestLocalStoreGetMissing tests the not-found sentinel
func TestLocalStoreGetMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "hot/nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
