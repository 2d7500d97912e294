package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

type seedUser struct {
	username string
	email    string
	password string
}

var (
	seedUsers = []seedUser{
		{username: "Default", email: "default@test.com", password: "testing"},
		{username: "Default Second", email: "second@test.com", password: "testing2"},
		{username: "Default Third", email: "third@test.com", password: "testing3"},
	}

	seedStocks = []struct {
		name      string
		maxShares int
	}{
		{name: "INVESTOR", maxShares: 100000},
		{name: "HELLO", maxShares: 1000000},
		{name: "NIBE", maxShares: 1000000},
	}

	loremWords = strings.Fields(`lorem ipsum dolor sit amet consectetur adipiscing elit sed do
		eiusmod tempor incididunt ut labore et dolore magna aliqua enim ad minim veniam quis
		nostrud exercitation ullamco laboris nisi aliquip ex ea commodo consequat duis aute irure
		in reprehenderit voluptate velit esse cillum fugiat nulla pariatur excepteur sint occaecat
		cupidatat non proident sunt culpa qui officia deserunt mollit anim id est laborum`)
)

type SeedSummary struct {
	Users    int
	Stocks   int
	Analyses int
	Diagrams int
}

// Seeder fills an empty store with demo users, stocks, analyses and price
// points. It only goes through the tracker's public write operations.
type Seeder struct {
	tracker *Tracker
	rng     *rand.Rand
	now     func() time.Time
}

func NewSeeder(tracker *Tracker, rng *rand.Rand) *Seeder {
	return &Seeder{tracker: tracker, rng: rng, now: time.Now}
}

func (s *Seeder) Run(ctx context.Context) (*SeedSummary, error) {
	summary := &SeedSummary{}

	users := make([]*User, 0, len(seedUsers))
	for _, u := range seedUsers {
		user, err := s.tracker.RegisterUser(ctx, RegisterUserInput{
			Username:        u.username,
			Email:           u.email,
			Password:        u.password,
			ConfirmPassword: u.password,
		})
		if err != nil {
			return summary, fmt.Errorf("failed to create user %s: %w", u.username, err)
		}
		users = append(users, user)
		summary.Users++
	}

	for _, st := range seedStocks {
		stock, err := s.tracker.CreateStock(ctx, StockInput{
			Name:           st.name,
			NumberOfShares: int64(s.between(1, st.maxShares)),
			Ticker:         s.ticker(),
		})
		if err != nil {
			return summary, fmt.Errorf("failed to create stock %s: %w", st.name, err)
		}
		summary.Stocks++

		for _, user := range users {
			for range s.between(1, 10) {
				if err := s.analysisWithDiagram(ctx, stock, user); err != nil {
					return summary, err
				}
				summary.Analyses++
				summary.Diagrams++
			}
		}
	}
	return summary, nil
}

func (s *Seeder) analysisWithDiagram(ctx context.Context, stock *Stock, user *User) error {
	posted := s.now().Add(-(time.Duration(s.between(1, 90))*24*time.Hour +
		time.Duration(s.between(1, 23))*time.Hour +
		time.Duration(s.between(1, 59))*time.Minute))

	price := decimal.NewFromInt(int64(s.between(1, 1000)))
	earnings := decimal.NewFromInt(int64(s.between(1, 100000)))
	pe := decimal.NewFromInt(int64(s.between(-5, 20)))
	marketCap := decimal.NewFromInt(int64(s.between(1, 10000)))

	_, err := s.tracker.CreateAnalysis(ctx, user.ID, stock.ID, AnalysisInput{
		Title:      s.words(s.between(3, 10), 50),
		Content:    s.words(s.between(3, 20), 600),
		DatePosted: &posted,
		Price:      &price,
		Earnings:   &earnings,
		PE:         &pe,
		MarketCap:  &marketCap,
	})
	if err != nil {
		return fmt.Errorf("failed to create analysis for %s: %w", stock.Name, err)
	}

	diagramPrice := decimal.NewFromInt(int64(s.between(1, 1000)))
	_, err = s.tracker.CreateDiagram(ctx, stock.ID, DiagramInput{Date: &posted, Price: &diagramPrice})
	if err != nil {
		return fmt.Errorf("failed to create diagram for %s: %w", stock.Name, err)
	}
	return nil
}

// between returns a random int in [lo, hi].
func (s *Seeder) between(lo, hi int) int {
	return lo + s.rng.IntN(hi-lo+1)
}

func (s *Seeder) ticker() string {
	var b strings.Builder
	for range 4 {
		b.WriteByte(byte('A' + s.rng.IntN(26)))
	}
	return b.String()
}

// words joins n lorem words, stopping early rather than exceed maxLen.
func (s *Seeder) words(n, maxLen int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		word := loremWords[s.rng.IntN(len(loremWords))]
		if b.Len()+len(word)+1 > maxLen {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
	}
	return b.String()
}

// serverRunning reports whether anything answers HTTP at url.
func serverRunning(ctx context.Context, url string) bool {
	client := resty.New().SetTimeout(2 * time.Second)
	_, err := client.R().SetContext(ctx).Get(url)
	return err == nil
}

// Dump writes every record's debug representation grouped by table.
func (t *Tracker) Dump(ctx context.Context, w io.Writer) error {
	users, err := t.AllUsers(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\nAll users:")
	for _, user := range users {
		fmt.Fprintln(w, "\t", user)
	}

	stocks, err := t.AllStocks(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\nAll stocks:")
	for _, stock := range stocks {
		fmt.Fprintln(w, "\t", stock)
	}

	analyses, err := t.AllAnalyses(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\nAll analyses:")
	for _, analysis := range analyses {
		fmt.Fprintln(w, "\t", analysis)
	}

	diagrams, err := t.AllDiagrams(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\nAll diagrams:")
	for _, diagram := range diagrams {
		fmt.Fprintln(w, "\t", diagram)
	}
	return nil
}
