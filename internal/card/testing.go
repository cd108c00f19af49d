package card

import (
    "time"

    "github.com/shopspring/decimal"
)

// SeedBalance is a test helper that sets a card's balance directly.
func (r *MemoryRepository) SeedBalance(id string, amount decimal.Decimal) {
    r.mu.Lock()
    defer r.mu.Unlock()
    if card, ok := r.storage[id]; ok {
        card.Balance = amount
        r.storage[id] = card
    }
}

// SeedExpiry is a test helper that overrides a card's expiry date.
func (r *MemoryRepository) SeedExpiry(id string, expiry time.Time) {
    r.mu.Lock()
    defer r.mu.Unlock()
    if card, ok := r.storage[id]; ok {
        card.ExpiryDate = expiry
        r.storage[id] = card
    }
}
