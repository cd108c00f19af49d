package card

import (
    "context"
    "testing"
    "time"

    "github.com/shopspring/decimal"
    "github.com/stretchr/testify/require"
)

func TestMemoryUpdateWaitsForLockedCard(t *testing.T) {
    repo := NewMemoryRepository()
    ctx := context.Background()
    now := time.Now().UTC()
    card := Card{
        ID:                "card-1",
        NumberCiphertext:  "ct-1",
        NumberFingerprint: "fp-1",
        HolderName:        "ALICE",
        Status:            StatusActive,
        ExpiryDate:        now.AddDate(ValidityPeriod, 0, 0),
        Balance:           decimal.RequireFromString("50.00"),
        OwnerID:           "owner-1",
        CreatedAt:         now,
        UpdatedAt:         now,
    }
    require.NoError(t, repo.Create(ctx, card))

    updated := make(chan error, 1)
    err := repo.WithLocked(ctx, []string{card.ID}, func(cards map[string]*Card) error {
        blocked := card
        blocked.Status = StatusBlocked
        go func() { updated <- repo.Update(ctx, blocked) }()

        select {
        case err := <-updated:
            t.Errorf("update finished while the card was locked: %v", err)
        case <-time.After(50 * time.Millisecond):
        }
        require.Equal(t, StatusActive, cards[card.ID].Status)
        cards[card.ID].Balance = decimal.RequireFromString("20.00")
        return nil
    })
    require.NoError(t, err)
    require.NoError(t, <-updated)

    stored, err := repo.Get(ctx, card.ID)
    require.NoError(t, err)
    require.Equal(t, StatusBlocked, stored.Status)
    require.Equal(t, "20.00", stored.Balance.StringFixed(2))
}

func TestMemoryUpdateMissingCard(t *testing.T) {
    repo := NewMemoryRepository()
    err := repo.Update(context.Background(), Card{ID: "nope"})
    require.Error(t, err)
}
