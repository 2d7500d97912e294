package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatabase_EnforcesForeignKeys(t *testing.T) {
	database := newTestDatabase(t, nil)

	var enabled int
	require.NoError(t, database.db.Raw("PRAGMA foreign_keys").Scan(&enabled).Error)
	assert.Equal(t, 1, enabled)
}

func TestSqliteDSN(t *testing.T) {
	cfg := DatabaseConfig{Path: "site.db", BusyTimeout: 0}
	assert.Equal(t, "site.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(0)", sqliteDSN(cfg))

	cfg = DatabaseConfig{Path: "file:site.db?cache=shared", BusyTimeout: 1500 * time.Millisecond}
	assert.Equal(t, "file:site.db?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(1500)", sqliteDSN(cfg))
}

func TestSession_CommitLifecycle(t *testing.T) {
	metrics := NewMetrics()
	database := newTestDatabase(t, metrics)

	session := database.Open(context.Background(), "create_stock")
	assert.Equal(t, SessionPending, session.State())

	stock := &Stock{Name: "NIBE", NumberOfShares: 10, Ticker: "NIBE"}
	session.Add(stock)
	assert.Equal(t, SessionStaged, session.State())
	assert.Zero(t, stock.ID)

	require.NoError(t, session.Commit())
	assert.Equal(t, SessionCommitted, session.State())
	assert.NotZero(t, stock.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.transactions.WithLabelValues("create_stock", "committed")))

	// Rollback after commit changes nothing.
	session.Rollback()
	assert.Equal(t, SessionCommitted, session.State())

	err := session.Commit()
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, errSessionClosed)
}

func TestSession_StagingOnFinishedSessionPanics(t *testing.T) {
	database := newTestDatabase(t, nil)

	session := database.Open(context.Background(), "test")
	session.Rollback()
	assert.Equal(t, SessionRolledBack, session.State())
	assert.Panics(t, func() { session.Add(&Stock{Name: "X", NumberOfShares: 1}) })
}

func TestSession_RollbackCountsOnlyStagedWork(t *testing.T) {
	metrics := NewMetrics()
	database := newTestDatabase(t, metrics)
	ctx := context.Background()
	rolledBack := metrics.transactions.WithLabelValues("create_stock", "rolled_back")

	empty := database.Open(ctx, "create_stock")
	empty.Rollback()
	assert.Equal(t, SessionRolledBack, empty.State())
	assert.Equal(t, 0.0, testutil.ToFloat64(rolledBack))

	staged := database.Open(ctx, "create_stock")
	stock := &Stock{Name: "NIBE", NumberOfShares: 1}
	staged.Add(stock)
	staged.Rollback()
	assert.Equal(t, SessionRolledBack, staged.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(rolledBack))

	stocks, err := Collect(Scan[Stock](database.Open(ctx, "check")))
	require.NoError(t, err)
	assert.Empty(t, stocks)
}

func TestTracker_RejectedWritesAreNotCounted(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()
	user := mustRegister(t, tracker, "quinn", "quinn@example.com")

	_, err := tracker.CreateAnalysis(ctx, user.ID, 999, analysisInput("nowhere"))
	require.ErrorIs(t, err, ErrNotFound)

	rolledBack := tracker.database.metrics.transactions.WithLabelValues("create_analysis", "rolled_back")
	assert.Equal(t, 0.0, testutil.ToFloat64(rolledBack))
}

func TestSession_ForeignKeyViolationRollsBack(t *testing.T) {
	metrics := NewMetrics()
	database := newTestDatabase(t, metrics)
	ctx := context.Background()

	session := database.Open(ctx, "create_analysis")
	stock := &Stock{Name: "HELLO", NumberOfShares: 5}
	analysis := &Analysis{
		Title:      "orphan",
		Content:    "no such user",
		DatePosted: fixedNow,
		Price:      *dec("1"),
		Earnings:   *dec("1"),
		PE:         *dec("1"),
		MarketCap:  *dec("1"),
		UserID:     999, // no such user
		StockID:    1,
	}
	session.Add(stock)
	session.Add(analysis)

	err := session.Commit()
	require.Error(t, err)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "create_analysis", perr.Op)
	assert.ErrorIs(t, err, ErrConstraintViolation)
	assert.Equal(t, SessionRolledBack, session.State())
	assert.Zero(t, stock.ID, "inserted ids are reset after rollback")
	assert.Zero(t, analysis.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.transactions.WithLabelValues("create_analysis", "rolled_back")))

	// Nothing from the failed transaction persisted.
	stocks, err := Collect(Scan[Stock](database.Open(ctx, "check")))
	require.NoError(t, err)
	assert.Empty(t, stocks)
}

func TestSession_CheckConstraint(t *testing.T) {
	database := newTestDatabase(t, nil)

	session := database.Open(context.Background(), "create_stock")
	session.Add(&Stock{Name: "BROKEN", NumberOfShares: 0})
	err := session.Commit()

	assert.ErrorIs(t, err, ErrConstraintViolation)
}

func TestSession_UniqueNameIgnoresCase(t *testing.T) {
	database := newTestDatabase(t, nil)
	ctx := context.Background()

	first := database.Open(ctx, "create_stock")
	first.Add(&Stock{Name: "Nibe", NumberOfShares: 1})
	require.NoError(t, first.Commit())

	second := database.Open(ctx, "create_stock")
	second.Add(&Stock{Name: "NIBE", NumberOfShares: 1})
	assert.ErrorIs(t, second.Commit(), ErrConstraintViolation)
}

func TestSession_DeleteMissingRecord(t *testing.T) {
	database := newTestDatabase(t, nil)

	session := database.Open(context.Background(), "delete_stock")
	session.Delete(&Stock{ID: 42})
	err := session.Commit()

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, SessionRolledBack, session.State())
}

func TestScan_EmptyAndRestartable(t *testing.T) {
	database := newTestDatabase(t, nil)
	ctx := context.Background()

	empty, err := Collect(Scan[Stock](database.Open(ctx, "list")))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Len(t, empty, 0)

	session := database.Open(ctx, "seed")
	for _, name := range []string{"C", "A", "B"} {
		session.Add(&Stock{Name: name, NumberOfShares: 1})
	}
	require.NoError(t, session.Commit())

	seq := Scan[Stock](database.Open(ctx, "list"), orderBy("name ASC"))
	first, err := Collect(seq)
	require.NoError(t, err)
	second, err := Collect(seq)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	names := make([]string, 0, len(first))
	for _, s := range first {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"A", "B", "C"}, names)
}

func TestScan_StopsEarly(t *testing.T) {
	database := newTestDatabase(t, nil)
	ctx := context.Background()

	session := database.Open(ctx, "seed")
	for _, name := range []string{"A", "B", "C"} {
		session.Add(&Stock{Name: name, NumberOfShares: 1})
	}
	require.NoError(t, session.Commit())

	seen := 0
	for _, err := range Scan[Stock](database.Open(ctx, "list")) {
		require.NoError(t, err)
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)

	// The connection was released; further queries still work.
	_, err := findByID[Stock](database.Open(ctx, "get"), 1)
	assert.NoError(t, err)
}

func TestFindByID_NotFound(t *testing.T) {
	database := newTestDatabase(t, nil)

	_, err := findByID[User](database.Open(context.Background(), "get"), 7)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTranslateStoreError(t *testing.T) {
	assert.Nil(t, translateStoreError(nil))

	plain := errors.New("disk I/O error")
	assert.Same(t, plain, translateStoreError(plain))

	for _, msg := range []string{
		"UNIQUE constraint failed: users.username",
		"FOREIGN KEY constraint failed",
		"CHECK constraint failed: chk_stocks_number_of_shares",
		"NOT NULL constraint failed: stocks.name",
	} {
		assert.ErrorIs(t, translateStoreError(errors.New(msg)), ErrConstraintViolation, msg)
	}
}
