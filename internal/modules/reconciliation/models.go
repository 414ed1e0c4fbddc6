package reconciliation

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankRecord is one bank-reported transaction from a statement source.
type BankRecord struct {
	Reference string // our payment reference echoed by the bank
	UTR       string
	Amount    decimal.Decimal
	Status    string
	Date      time.Time
}

// Tracked fields a mismatch can point at.
const (
	FieldAmount   = "amount"
	FieldStatus   = "status"
	FieldPresence = "presence"
)

type Mismatch struct {
	PaymentReference string `json:"payment_reference"`
	Field            string `json:"field"`
	Expected         string `json:"expected"`
	Actual           string `json:"actual"`
	Description      string `json:"description"`
}

// Result is built fresh per run and not persisted here.
type Result struct {
	FromDate time.Time `json:"from_date"`
	ToDate   time.Time `json:"to_date"`

	TotalRecords     int `json:"total_records"`
	MatchedRecords   int `json:"matched_records"`
	UnmatchedRecords int `json:"unmatched_records"`

	TotalAmount   decimal.Decimal `json:"total_amount"`
	MatchedAmount decimal.Decimal `json:"matched_amount"`

	Mismatches []Mismatch `json:"mismatches"`
}
