package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDatabase(t *testing.T, metrics *Metrics) *Database {
	t.Helper()

	database, err := NewDatabase(DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: 5 * time.Second,
	}, metrics)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func newTestTracker(t *testing.T, opts ...TrackerOption) *Tracker {
	t.Helper()

	base := []TrackerOption{
		WithLogger(discardLogger()),
		WithBcryptCost(bcrypt.MinCost),
		WithClock(func() time.Time { return fixedNow }),
	}
	return NewTracker(newTestDatabase(t, NewMetrics()), append(base, opts...)...)
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, decimal.RequireFromString(want).StringFixed(2), got.StringFixed(2))
}

func mustRegister(t *testing.T, tracker *Tracker, username, email string) *User {
	t.Helper()

	user, err := tracker.RegisterUser(context.Background(), RegisterUserInput{
		Username:        username,
		Email:           email,
		Password:        "secret-password",
		ConfirmPassword: "secret-password",
	})
	require.NoError(t, err)
	return user
}

func mustCreateStock(t *testing.T, tracker *Tracker, name string, shares int64) *Stock {
	t.Helper()

	stock, err := tracker.CreateStock(context.Background(), StockInput{
		Name:           name,
		NumberOfShares: shares,
		Ticker:         "ABCD",
	})
	require.NoError(t, err)
	return stock
}

func analysisInput(title string) AnalysisInput {
	return AnalysisInput{
		Title:    title,
		Content:  "Solid quarter, margins up.",
		Price:    dec("100"),
		Earnings: dec("8"),
	}
}
