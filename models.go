package main

import (
	"time"
)

// Request and response bodies of the HTTP API.

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        *User     `json:"user"`
}

type AccountResponse struct {
	User     *User  `json:"user"`
	ImageURL string `json:"imageUrl"`
}

type HomeResponse struct {
	Stocks   []Stock    `json:"stocks"`
	Analyses []Analysis `json:"analyses"`
}

type StockDetailResponse struct {
	Stock    *Stock     `json:"stock"`
	Diagrams []Diagram  `json:"diagrams"`
	Analyses []Analysis `json:"analyses"`
}

type ImportResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	RecordsAdded int    `json:"recordsAdded"`
	LatestDate   string `json:"latestDate"`
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
