package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// GORM models for the database

const defaultImageFile = "default.jpg"

// User is a registered account. Password holds the bcrypt hash only.
type User struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Username  string `gorm:"size:20;uniqueIndex;not null" json:"username"`
	Email     string `gorm:"size:120;uniqueIndex;not null" json:"email"`
	ImageFile string `gorm:"size:64;not null;default:default.jpg" json:"imageFile"`
	Password  string `gorm:"size:60;not null" json:"-"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

func (u User) String() string {
	return fmt.Sprintf("<User(id='%d', username='%s', email='%s', image_file='%s')>",
		u.ID, u.Username, u.Email, u.ImageFile)
}

// Stock is a tracked company. Name and Ticker are stored uppercase.
type Stock struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	Name           string `gorm:"size:20;uniqueIndex;not null" json:"name"`
	NumberOfShares int64  `gorm:"not null;check:chk_stocks_number_of_shares,number_of_shares > 0" json:"numberOfShares"`
	Ticker         string `gorm:"size:4;not null" json:"ticker"`
}

// TableName specifies the table name for Stock
func (Stock) TableName() string {
	return "stocks"
}

func (s Stock) String() string {
	return fmt.Sprintf("<Stock(id='%d', name='%s', number_of_shares='%d', ticker='%s')>",
		s.ID, s.Name, s.NumberOfShares, s.Ticker)
}

// Analysis is a user's write-up on a stock together with the metrics it was based on.
// Money columns are TEXT: SQLite would coerce numeric columns to REAL.
type Analysis struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Title      string          `gorm:"size:50;not null" json:"title"`
	Content    string          `gorm:"type:text;not null" json:"content"`
	DatePosted time.Time       `gorm:"not null;index" json:"datePosted"`
	Price      decimal.Decimal `gorm:"type:text;not null" json:"price"`
	Earnings   decimal.Decimal `gorm:"type:text;not null" json:"earnings"`
	PE         decimal.Decimal `gorm:"column:p_e;type:text;not null" json:"pe"`
	MarketCap  decimal.Decimal `gorm:"type:text;not null" json:"marketCap"`

	UserID  uint   `gorm:"not null;index" json:"userId"`
	User    *User  `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
	StockID uint   `gorm:"not null;index" json:"stockId"`
	Stock   *Stock `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
}

// TableName specifies the table name for Analysis
func (Analysis) TableName() string {
	return "analyses"
}

func (a Analysis) String() string {
	return fmt.Sprintf("<Analysis(id='%d', stock_id='%d', user_id='%d', date_posted='%s', price='%s', earnings='%s', p_e='%s', market_cap='%s')>",
		a.ID, a.StockID, a.UserID, a.DatePosted.Format("2006-01-02 15:04:05"),
		a.Price.StringFixed(2), a.Earnings.StringFixed(2), a.PE.StringFixed(2), a.MarketCap.StringFixed(2))
}

// Diagram is one point of a stock's price history.
type Diagram struct {
	ID      uint            `gorm:"primaryKey" json:"id"`
	Date    time.Time       `gorm:"not null;index:idx_diagrams_stock_date,priority:2" json:"date"`
	Price   decimal.Decimal `gorm:"type:text;not null" json:"price"`
	StockID uint            `gorm:"not null;index:idx_diagrams_stock_date,priority:1" json:"stockId"`
	Stock   *Stock          `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
}

// TableName specifies the table name for Diagram
func (Diagram) TableName() string {
	return "diagrams"
}

func (d Diagram) String() string {
	return fmt.Sprintf("<Diagram(date='%s', price='%s', stock='%d')>",
		d.Date.Format("2006-01-02 15:04:05"), d.Price.StringFixed(2), d.StockID)
}

// Get all model types for auto migration
var allModels = []interface{}{
	&User{},
	&Stock{},
	&Analysis{},
	&Diagram{},
}
