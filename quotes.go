package main

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteProvider supplies market prices for a ticker symbol.
type QuoteProvider interface {
	// LatestPrice returns the most recent regular market price.
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	// DailyCloses returns one closing price per trading day over the last days,
	// oldest first.
	DailyCloses(ctx context.Context, symbol string, days int) ([]PricePoint, error)
}

type PricePoint struct {
	Date  time.Time
	Price decimal.Decimal
}
