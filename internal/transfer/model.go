package transfer

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankcards/cardledger/internal/money"
)

// Status is the lifecycle state of a transfer. Every status but PENDING is terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether the record may no longer change.
func (s Status) Terminal() bool {
	return s != StatusPending
}

// MaxDescriptionLen bounds the free-text description.
const MaxDescriptionLen = 500

var (
	// MinAmount and MaxAmount bound a single transfer, inclusive.
	MinAmount = decimal.New(1, -2)
	MaxAmount = decimal.New(1_000_000, 0)
)

// Transfer is a single balance movement between two cards.
type Transfer struct {
	ID           string
	FromCardID   string
	ToCardID     string
	Amount       decimal.Decimal
	Description  string
	Status       Status
	CreatedAt    time.Time
	CompletedAt  *time.Time
	ErrorMessage string
}

// View is the outward projection of a transfer with masked card numbers.
type View struct {
	ID               string          `json:"id"`
	FromCardID       string          `json:"from_card_id"`
	FromMaskedNumber string          `json:"from_card_number"`
	ToCardID         string          `json:"to_card_id"`
	ToMaskedNumber   string          `json:"to_card_number"`
	Amount           money.Amount    `json:"amount"`
	Description      string          `json:"description,omitempty"`
	Status           Status          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
}

// BalanceView reports the balance of one card.
type BalanceView struct {
	CardID       string          `json:"card_id"`
	MaskedNumber string          `json:"card_number"`
	Balance      money.Amount    `json:"balance"`
	HolderName   string          `json:"cardholder_name"`
}

// Filter narrows the administrative transfer listing. Zero fields match everything.
type Filter struct {
	Status Status
	UserID string
	From   *time.Time
	To     *time.Time
}

func (f Filter) matchesTime(t time.Time) bool {
	if f.From != nil && t.Before(*f.From) {
		return false
	}
	return f.To == nil || !t.After(*f.To)
}
