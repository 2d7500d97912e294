package main

import (
	"bytes"
	"context"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeeder_Run(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	seeder := NewSeeder(tracker, rand.New(rand.NewPCG(1, 2)))
	seeder.now = func() time.Time { return fixedNow }

	summary, err := seeder.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Users)
	assert.Equal(t, 3, summary.Stocks)
	assert.GreaterOrEqual(t, summary.Analyses, 9)
	assert.LessOrEqual(t, summary.Analyses, 90)
	assert.Equal(t, summary.Analyses, summary.Diagrams)

	stocks, err := tracker.ListStocksByName(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(stocks))
	for _, stock := range stocks {
		names = append(names, stock.Name)
		assert.Len(t, stock.Ticker, 4)
		assert.Equal(t, -1, strings.IndexFunc(stock.Ticker, func(r rune) bool { return !unicode.IsUpper(r) }))
		assert.Positive(t, stock.NumberOfShares)
	}
	assert.Equal(t, []string{"HELLO", "INVESTOR", "NIBE"}, names)

	analyses, err := tracker.AllAnalyses(ctx)
	require.NoError(t, err)
	assert.Len(t, analyses, summary.Analyses)
	for _, analysis := range analyses {
		assert.LessOrEqual(t, len(analysis.Title), 50)
		assert.NotEmpty(t, analysis.Title)
		assert.True(t, analysis.DatePosted.Before(fixedNow))
		assert.True(t, analysis.DatePosted.After(fixedNow.AddDate(0, 0, -92)))
	}

	// Demo accounts can log in with their documented passwords.
	_, err = tracker.Authenticate(ctx, "second@test.com", "testing2")
	assert.NoError(t, err)
}

func TestSeeder_RefusesSecondRun(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	_, err := NewSeeder(tracker, rand.New(rand.NewPCG(3, 4))).Run(ctx)
	require.NoError(t, err)

	_, err = NewSeeder(tracker, rand.New(rand.NewPCG(3, 4))).Run(ctx)
	assert.ErrorIs(t, err, ErrDuplicateUsername)
}

func TestDump(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()
	user := mustRegister(t, tracker, "dumper", "dumper@example.com")
	stock := mustCreateStock(t, tracker, "NIBE", 10)
	_, err := tracker.CreateAnalysis(ctx, user.ID, stock.ID, analysisInput("dumped"))
	require.NoError(t, err)
	_, err = tracker.CreateDiagram(ctx, stock.ID, DiagramInput{Price: dec("3.5")})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, tracker.Dump(ctx, &out))

	text := out.String()
	assert.Contains(t, text, "All users:")
	assert.Contains(t, text, "username='dumper'")
	assert.Contains(t, text, "<Stock(id='1', name='NIBE', number_of_shares='10', ticker='ABCD')>")
	assert.Contains(t, text, "p_e='12.50'")
	assert.Contains(t, text, "<Diagram(date='2024-03-15 12:00:00', price='3.50', stock='1')>")
	assert.NotContains(t, text, user.Password)
}

func TestServerRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	assert.True(t, serverRunning(context.Background(), srv.URL))

	srv.Close()
	assert.False(t, serverRunning(context.Background(), srv.URL))
}
