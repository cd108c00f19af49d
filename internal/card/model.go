package card

import (
    "time"

    "github.com/shopspring/decimal"

    "github.com/bankcards/cardledger/internal/money"
)

// Status is the stored lifecycle state of a card.
type Status string

const (
    StatusActive  Status = "ACTIVE"
    StatusBlocked Status = "BLOCKED"
    // StatusExpired is never stored; it is derived from the expiry date.
    StatusExpired Status = "EXPIRED"
)

// ValidityPeriod is how long a newly issued card stays valid.
const ValidityPeriod = 3 // years

// NumberLength is the digit count of a card number once spaces are removed.
const NumberLength = 16

// Card is a user-owned balance holder. The card number exists only as
// ciphertext plus a keyed fingerprint.
type Card struct {
    ID                string
    NumberCiphertext  string
    NumberFingerprint string
    HolderName        string
    Status            Status
    ExpiryDate        time.Time
    Balance           decimal.Decimal
    OwnerID           string
    CreatedAt         time.Time
    UpdatedAt         time.Time
}

// IsExpired reports whether the expiry day has passed. A card is still valid
// on its expiry date itself.
func (c Card) IsExpired(now time.Time) bool {
    return dateOf(now).After(dateOf(c.ExpiryDate))
}

// EffectiveStatus layers the derived EXPIRED state on top of the stored one.
func (c Card) EffectiveStatus(now time.Time) Status {
    if c.IsExpired(now) {
        return StatusExpired
    }
    return c.Status
}

// IsTransactable reports whether funds may move in or out of the card.
func (c Card) IsTransactable(now time.Time) bool {
    return c.Status == StatusActive && !c.IsExpired(now)
}

// View is the outward projection of a card. It never carries the clear number.
type View struct {
    ID           string          `json:"id"`
    MaskedNumber string          `json:"card_number"`
    HolderName   string          `json:"cardholder_name"`
    Status       Status          `json:"status"`
    ExpiryDate   time.Time       `json:"expiry_date"`
    Balance      money.Amount    `json:"balance"`
    OwnerID      string          `json:"owner_id"`
    CreatedAt    time.Time       `json:"created_at"`
    UpdatedAt    time.Time       `json:"updated_at"`
}

// Summary aggregates a user's cards.
type Summary struct {
    CardCount     int             `json:"card_count"`
    ActiveCount   int             `json:"active_count"`
    ActiveBalance money.Amount    `json:"active_balance"`
}

// Filter narrows the administrative card listing.
type Filter struct {
    Status  Status
    OwnerID string
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
    HolderName *string
    Status     *Status
}
