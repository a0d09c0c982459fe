package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is one spending entry stored in the expense database.
type Expense struct {
	ID       string
	Name     string
	Amount   decimal.Decimal
	Category string
	Date     time.Time
}

// PreOrder is an item ordered ahead of its release.
type PreOrder struct {
	ID          string
	Name        string
	Store       string
	Links       string
	ReleaseDate string
	FullPrice   decimal.Decimal
	DownPayment decimal.Decimal
}

// Remaining is the amount still owed after the down payment.
func (p PreOrder) Remaining() decimal.Decimal {
	return p.FullPrice.Sub(p.DownPayment)
}

// WishlistItem is something the user wants to buy later.
// Optional fields are empty when the user skipped them.
type WishlistItem struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	URL      string
	Note     string
	Priority string
	Category string
}

// Budget is a user's monthly spending limit.
type Budget struct {
	UserID  string
	Monthly decimal.Decimal
}

// Receipt is the OCR result for a receipt image.
type Receipt struct {
	ID       string
	Vendor   string
	Total    decimal.Decimal
	Currency string
	Date     string
	Items    []ReceiptItem
}

// ReceiptItem is a single line on a receipt.
type ReceiptItem struct {
	Description string
	Quantity    decimal.Decimal
	Total       decimal.Decimal
}
