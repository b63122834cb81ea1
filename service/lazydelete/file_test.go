package lazydelete

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/elC0mpa/aws-teardown/model"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id string, status model.LazyDeleteStatus, created time.Time) model.LazyDeleteEntry {
	return model.LazyDeleteEntry{
		ID:                        id,
		ServiceType:               "s3",
		ResourceID:                id,
		AccountID:                 "222222222222",
		Region:                    "us-east-1",
		Reason:                    "emptying did not finish",
		ExpectedConvergenceWindow: model.Duration(48 * time.Hour),
		Status:                    status,
		RunID:                     "run-1",
		Attempts:                  1,
		CreatedAt:                 created,
		UpdatedAt:                 created,
	}
}

func TestListMissingFileIsEmpty(t *testing.T) {
	store := NewFile(filepath.Join(t.TempDir(), "lazy.json"))

	got, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpsertRoundTripsAndSorts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "lazy.json")
	store := NewFile(path)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	b := entry("s3:222222222222:acme-logs", model.LazyDeletePending, created)
	a := entry("s3:222222222222:acme-assets", model.LazyDeletePending, created)
	require.NoError(t, store.Upsert(ctx, b, a))

	got, err := NewFile(path).List(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff([]model.LazyDeleteEntry{a, b}, got); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestUpsertKeepsCreationTime(t *testing.T) {
	ctx := context.Background()
	store := NewFile(filepath.Join(t.TempDir(), "lazy.json"))
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := first.Add(72 * time.Hour)

	require.NoError(t, store.Upsert(ctx, entry("s3:1:b", model.LazyDeletePending, first)))

	done := entry("s3:1:b", model.LazyDeleteCompleted, later)
	done.Attempts = 2
	require.NoError(t, store.Upsert(ctx, done))

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, first, got[0].CreatedAt)
	assert.Equal(t, later, got[0].UpdatedAt)
	assert.Equal(t, model.LazyDeleteCompleted, got[0].Status)
	assert.Equal(t, 2, got[0].Attempts)
}

func TestPendingFiltersCompleted(t *testing.T) {
	ctx := context.Background()
	store := NewFile(filepath.Join(t.TempDir(), "lazy.json"))
	now := time.Now().UTC()

	require.NoError(t, store.Upsert(ctx,
		entry("s3:1:done", model.LazyDeleteCompleted, now),
		entry("s3:1:open", model.LazyDeletePending, now),
	))

	got, err := store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s3:1:open", got[0].ID)
}

func TestUpsertRejectsEntryWithoutID(t *testing.T) {
	store := NewFile(filepath.Join(t.TempDir(), "lazy.json"))

	err := store.Upsert(context.Background(), model.LazyDeleteEntry{})
	require.ErrorIs(t, err, errNoID)
}

func TestCorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lazy.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFile(path).List(context.Background())
	require.ErrorIs(t, err, errRead)
}
