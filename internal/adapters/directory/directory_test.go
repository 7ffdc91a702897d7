package directory

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/jsamuelsen/callrelay/internal/domain"
	"github.com/jsamuelsen/callrelay/internal/platform/config"
	"github.com/jsamuelsen/callrelay/internal/ports"
)

var dbSeq atomic.Int64

func memoryDSN() string {
	return fmt.Sprintf("file:directory-test-%d?mode=memory&cache=shared", dbSeq.Add(1))
}

func newMemoryDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", memoryDSN())
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()

	d := New(map[string]*bun.DB{"default": newMemoryDB(t), "office": newMemoryDB(t)},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, d.EnsureSchema(context.Background()))

	return d
}

func TestDirectory_FaxRule(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)

	require.NoError(t, d.SaveFaxRule(ctx, "default", ports.FaxRule{Number: "555", DeliveryAddress: "office@example.com", Limit: 2}))

	rule, err := d.FaxRule(ctx, "default", "555")
	require.NoError(t, err)
	assert.Equal(t, &ports.FaxRule{Number: "555", DeliveryAddress: "office@example.com", Limit: 2}, rule)

	_, err = d.FaxRule(ctx, "office", "555")
	require.Error(t, err, "accounts are separate databases")
	assert.True(t, domain.IsNoRule(err))

	_, err = d.FaxRule(ctx, "default", "556")
	require.Error(t, err)
	assert.True(t, domain.IsNoRule(err))
	assert.EqualError(t, err, `no fax2email rule for "556"`)
}

func TestDirectory_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)

	require.NoError(t, d.SaveFaxRule(ctx, "default", ports.FaxRule{Number: "555", DeliveryAddress: "a@example.com", Limit: 1}))
	require.NoError(t, d.SaveFaxRule(ctx, "default", ports.FaxRule{Number: "555", DeliveryAddress: "b@example.com", Limit: 4}))

	rule, err := d.FaxRule(ctx, "default", "555")
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", rule.DeliveryAddress)
	assert.Equal(t, 4, rule.Limit)

	require.NoError(t, d.SaveForwardRule(ctx, "default", ports.ForwardRule{SourceNumber: "100", ForwardTarget: "200", Delay: 20}))
	require.NoError(t, d.SaveForwardRule(ctx, "default", ports.ForwardRule{SourceNumber: "100", ForwardTarget: "300", Delay: 5}))

	fwd, err := d.ForwardRule(ctx, "default", "100")
	require.NoError(t, err)
	assert.Equal(t, &ports.ForwardRule{SourceNumber: "100", ForwardTarget: "300", Delay: 5}, fwd)
}

func TestDirectory_LenientColumns(t *testing.T) {
	ctx := context.Background()
	db := newMemoryDB(t)
	d := New(map[string]*bun.DB{"default": db}, nil)
	require.NoError(t, d.EnsureSchema(ctx))

	_, err := db.ExecContext(ctx, `INSERT INTO fax2email (number, email, "limit") VALUES
		('1', ' padded@example.com ', NULL),
		('2', 'x@example.com', 'many'),
		('3', 'y@example.com', '-2'),
		('4', 'z@example.com', ' 7 ')`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO forwarder (source_number, forward_to, delay) VALUES ('100', '200', 'soon')`)
	require.NoError(t, err)

	tests := []struct {
		number string
		email  string
		limit  int
	}{
		{number: "1", email: "padded@example.com", limit: 0},
		{number: "2", email: "x@example.com", limit: 0},
		{number: "3", email: "y@example.com", limit: 0},
		{number: "4", email: "z@example.com", limit: 7},
	}

	for _, tt := range tests {
		rule, err := d.FaxRule(ctx, "default", tt.number)
		require.NoError(t, err, tt.number)
		assert.Equal(t, tt.email, rule.DeliveryAddress, tt.number)
		assert.Equal(t, tt.limit, rule.Limit, tt.number)
	}

	fwd, err := d.ForwardRule(ctx, "default", "100")
	require.NoError(t, err)
	assert.Equal(t, 0, fwd.Delay)
}

func TestDirectory_UnknownAccount(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)

	_, err := d.FaxRule(ctx, "sales", "555")
	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))

	_, err = d.ForwardRule(ctx, "sales", "100")
	assert.True(t, domain.IsUnavailable(err))

	assert.True(t, domain.IsUnavailable(d.SaveFaxRule(ctx, "sales", ports.FaxRule{Number: "1"})))
}

func TestDirectory_QueryFailureIsUnavailable(t *testing.T) {
	ctx := context.Background()
	d := New(map[string]*bun.DB{"default": newMemoryDB(t)}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// No schema: the query itself fails.
	_, err := d.ForwardRule(ctx, "default", "100")
	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))
	assert.False(t, domain.IsNoRule(err))
}

func TestDirectory_Checkers(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)

	checkers := d.Checkers()
	require.Len(t, checkers, 2)
	assert.Equal(t, "directory.default", checkers[0].Name())
	assert.Equal(t, "directory.office", checkers[1].Name())
	assert.NoError(t, checkers[0].Check(ctx))

	require.NoError(t, d.Close())
	assert.Error(t, checkers[1].Check(ctx))
}

func TestOpen(t *testing.T) {
	d, err := Open(map[string]config.DatabaseConfig{
		"default": {Driver: "sqlite3", DSN: memoryDSN()},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	require.NoError(t, d.EnsureSchema(ctx))
	require.NoError(t, d.SaveForwardRule(ctx, "default", ports.ForwardRule{SourceNumber: "100", ForwardTarget: "200", Delay: 20}))

	rule, err := d.ForwardRule(ctx, "default", "100")
	require.NoError(t, err)
	assert.Equal(t, 20, rule.Delay)

	_, err = Open(map[string]config.DatabaseConfig{"default": {Driver: "oracle", DSN: "x"}}, nil)
	assert.Error(t, err)
}
