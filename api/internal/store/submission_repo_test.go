package store

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peer-review/api/internal/ledger"
)

// Runs against a disposable database: TEST_DATABASE_URL=postgres://... go test ./...
func newTestRepo(t *testing.T) *SubmissionRepo {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewSubmissionRepo(db)
	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.Clear(ctx))
	return repo
}

func TestSubmissionRepoLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec, err := repo.Append(ctx, "5 - Presenting Results", "12", true)
	require.NoError(t, err)
	assert.False(t, rec.Timestamp.IsZero())

	_, err = repo.Append(ctx, "5 - Presenting Results", "12", false)
	assert.ErrorIs(t, err, ledger.ErrDuplicate)

	ok, err := repo.HasSubmitted(ctx, "12", "5 - Presenting Results")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.Append(ctx, "2 - Research Questions", "12", false)
	require.NoError(t, err)

	removed, err := repo.DeleteByIndex(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "5 - Presenting Results", removed.Module)

	_, err = repo.DeleteByIndex(ctx, 5)
	assert.ErrorIs(t, err, ledger.ErrIndexOutOfRange)

	rest, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	stale := rest[0]
	stale.Timestamp = stale.Timestamp.Add(-time.Minute)
	ok, err = repo.DeleteRecord(ctx, stale)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := repo.DeleteByKey(ctx, "12", "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var buf bytes.Buffer
	require.NoError(t, ledger.Export(ctx, repo, &buf))
	assert.Equal(t, "timestamp,module,groupnumber,included_figures\n", buf.String())
}

func TestSubmissionRepoSaveReplaces(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Append(ctx, "3 - Study Design", "1", false)
	require.NoError(t, err)

	records, err := repo.Load(ctx)
	require.NoError(t, err)
	records = append(records, ledger.Record{
		Timestamp:   records[0].Timestamp.Add(time.Second),
		Module:      "4 - Human Research Ethics",
		GroupNumber: "2",
	})
	require.NoError(t, repo.Save(ctx, records))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[1].GroupNumber)
}
