package admin

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peer-review/api/internal/cache"
	"peer-review/api/internal/ledger"
)

func newConsole(t *testing.T, seed ...ledger.Record) (*Console, ledger.Store) {
	t.Helper()
	store := ledger.NewCSVStore(filepath.Join(t.TempDir(), "submission_log.csv"))
	require.NoError(t, store.Save(context.Background(), seed))
	c, err := New(store, "s3cret", cache.NewMemory(), nil)
	require.NoError(t, err)
	return c, store
}

func rec(module, group string) ledger.Record {
	return ledger.Record{
		Timestamp:   time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
		Module:      module,
		GroupNumber: group,
	}
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(ledger.NewCSVStore(filepath.Join(t.TempDir(), "x.csv")), "", nil, nil)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestLoginAuthorizeLogout(t *testing.T) {
	ctx := context.Background()
	c, _ := newConsole(t)

	_, err := c.Login(ctx, "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)

	token, err := c.Login(ctx, "s3cret")
	require.NoError(t, err)
	require.NoError(t, c.Authorize(ctx, token))
	assert.ErrorIs(t, c.Authorize(ctx, "other"), ErrUnauthorized)
	assert.ErrorIs(t, c.Authorize(ctx, ""), ErrUnauthorized)

	c.Logout(ctx, token)
	assert.ErrorIs(t, c.Authorize(ctx, token), ErrUnauthorized)
}

func TestListAndStats(t *testing.T) {
	ctx := context.Background()
	c, _ := newConsole(t,
		rec("2 - Research Questions", "1"),
		rec("5 - Presenting Results", "1"),
		rec("5 - Presenting Results", "2"),
	)

	all, err := c.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	results, err := c.List(ctx, "5")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Index)
	assert.Equal(t, 2, results[1].Index)

	st, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.Groups)
	assert.Equal(t, 2, st.Modules)
	assert.Equal(t, 2, st.ByModule["5 - Presenting Results"])

	mods, err := c.Modules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2 - Research Questions", "5 - Presenting Results"}, mods)
}

func TestClearThenExportIsHeaderOnly(t *testing.T) {
	ctx := context.Background()
	c, _ := newConsole(t, rec("3 - Study Design", "4"), rec("4 - Human Research Ethics", "4"))

	p, err := c.Arm(ctx, Command{Kind: Clear})
	require.NoError(t, err)

	var before bytes.Buffer
	require.NoError(t, c.Export(ctx, &before))
	assert.Contains(t, before.String(), "3 - Study Design", "arming alone must not change the ledger")

	out, err := c.Confirm(ctx, p.Token)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Deleted)

	var buf bytes.Buffer
	require.NoError(t, c.Export(ctx, &buf))
	assert.Equal(t, strings.Join(ledger.Header, ",")+"\n", buf.String())
}

func TestConfirmIsSingleUse(t *testing.T) {
	ctx := context.Background()
	c, store := newConsole(t, rec("2 - Research Questions", "1"), rec("3 - Study Design", "2"))

	p, err := c.Arm(ctx, Command{Kind: DeleteIndex, Index: 0})
	require.NoError(t, err)

	out, err := c.Confirm(ctx, p.Token)
	require.NoError(t, err)
	require.NotNil(t, out.Record)
	assert.Equal(t, "2 - Research Questions", out.Record.Module)

	_, err = c.Confirm(ctx, p.Token)
	assert.ErrorIs(t, err, ErrNotArmed)

	records, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "3 - Study Design", records[0].Module)
}

func TestArmValidation(t *testing.T) {
	ctx := context.Background()
	c, _ := newConsole(t, rec("2 - Research Questions", "1"))

	_, err := c.Arm(ctx, Command{Kind: DeleteIndex, Index: 1})
	assert.ErrorIs(t, err, ledger.ErrIndexOutOfRange)
	_, err = c.Arm(ctx, Command{Kind: DeleteIndex, Index: -1})
	assert.ErrorIs(t, err, ledger.ErrIndexOutOfRange)
	_, err = c.Arm(ctx, Command{Kind: DeleteGroup, Group: " "})
	assert.ErrorIs(t, err, ErrInvalidCommand)
	_, err = c.Arm(ctx, Command{Kind: "drop_table"})
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestDeleteGroupScopedToModule(t *testing.T) {
	ctx := context.Background()
	c, store := newConsole(t,
		rec("2 - Research Questions", "7"),
		rec("3 - Study Design", "7"),
		rec("3 - Study Design", "8"),
	)

	p, err := c.Arm(ctx, Command{Kind: DeleteGroup, Group: "7", Module: "design"})
	require.NoError(t, err)
	assert.Equal(t, "3 - Study Design", p.Command.Module)

	out, err := c.Confirm(ctx, p.Token)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Deleted)

	p, err = c.Arm(ctx, Command{Kind: DeleteGroup, Group: "7"})
	require.NoError(t, err)
	out, err = c.Confirm(ctx, p.Token)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Deleted)

	records, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "8", records[0].GroupNumber)
}

func TestArmedCommandExpires(t *testing.T) {
	ctx := context.Background()
	c, store := newConsole(t, rec("2 - Research Questions", "1"))
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	p, err := c.Arm(ctx, Command{Kind: Clear})
	require.NoError(t, err)
	assert.True(t, now.Add(DefaultArmTTL).Equal(p.ExpiresAt))

	now = now.Add(DefaultArmTTL)
	_, err = c.Confirm(ctx, p.Token)
	assert.ErrorIs(t, err, ErrNotArmed)

	records, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	c, _ := newConsole(t, rec("2 - Research Questions", "1"))

	p, err := c.Arm(ctx, Command{Kind: Clear})
	require.NoError(t, err)
	c.Cancel(ctx, p.Token)

	_, err = c.Confirm(ctx, p.Token)
	assert.ErrorIs(t, err, ErrNotArmed)
}

func TestDeleteIndexFollowsArmedRecord(t *testing.T) {
	ctx := context.Background()
	c, store := newConsole(t,
		rec("2 - Research Questions", "A"),
		rec("2 - Research Questions", "B"),
		rec("2 - Research Questions", "C"),
	)

	armedB, err := c.Arm(ctx, Command{Kind: DeleteIndex, Index: 1})
	require.NoError(t, err)
	require.NotNil(t, armedB.Target)
	assert.Equal(t, "B", armedB.Target.GroupNumber)

	armedA, err := c.Arm(ctx, Command{Kind: DeleteIndex, Index: 0})
	require.NoError(t, err)
	_, err = c.Confirm(ctx, armedA.Token)
	require.NoError(t, err)

	out, err := c.Confirm(ctx, armedB.Token)
	require.NoError(t, err)
	require.NotNil(t, out.Record)
	assert.Equal(t, "B", out.Record.GroupNumber)

	records, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "C", records[0].GroupNumber)
}

func TestDeleteIndexOfRemovedRecordIsStale(t *testing.T) {
	ctx := context.Background()
	c, store := newConsole(t,
		rec("2 - Research Questions", "A"),
		rec("2 - Research Questions", "B"),
	)

	armed, err := c.Arm(ctx, Command{Kind: DeleteIndex, Index: 0})
	require.NoError(t, err)

	group, err := c.Arm(ctx, Command{Kind: DeleteGroup, Group: "A"})
	require.NoError(t, err)
	_, err = c.Confirm(ctx, group.Token)
	require.NoError(t, err)

	_, err = c.Confirm(ctx, armed.Token)
	assert.ErrorIs(t, err, ErrStaleCommand)

	records, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "B", records[0].GroupNumber)
}

func TestClearRecoversMalformedLedger(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "submission_log.csv")
	require.NoError(t, os.WriteFile(path, []byte("not,a\nledger"), 0o644))
	store := ledger.NewCSVStore(path)
	c, err := New(store, "s3cret", cache.NewMemory(), nil)
	require.NoError(t, err)

	_, err = store.HasSubmitted(ctx, "1", "2 - Research Questions")
	require.ErrorIs(t, err, ledger.ErrMalformed)

	p, err := c.Arm(ctx, Command{Kind: Clear})
	require.NoError(t, err)
	out, err := c.Confirm(ctx, p.Token)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Deleted)

	ok, err := store.HasSubmitted(ctx, "1", "2 - Research Questions")
	require.NoError(t, err)
	assert.False(t, ok)
}
