package transfer

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bankcards/cardledger/internal/card"
	"github.com/bankcards/cardledger/internal/paging"
)

// CardLedger is what the in-memory store needs from the card repository.
type CardLedger interface {
	card.Locker
	Get(ctx context.Context, id string) (card.Card, error)
}

// MemoryStore keeps transfers in a map and moves balances through the card
// repository's per-card locks. Transfers whose card was deleted disappear,
// mirroring the cascade in Postgres.
type MemoryStore struct {
	mu        sync.RWMutex
	transfers map[string]Transfer
	cards     CardLedger
}

// NewMemoryStore creates an in-memory transfer store over cards.
func NewMemoryStore(cards CardLedger) *MemoryStore {
	return &MemoryStore{transfers: make(map[string]Transfer), cards: cards}
}

func (s *MemoryStore) Create(_ context.Context, t Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transfers[t.ID]; exists {
		return fmt.Errorf("transfer %s already exists", t.ID)
	}
	s.transfers[t.ID] = t
	return nil
}

func (s *MemoryStore) Execute(ctx context.Context, t Transfer, now time.Time) (Transfer, error) {
	var done Transfer
	err := s.cards.WithLocked(ctx, []string{t.FromCardID, t.ToCardID}, func(cards map[string]*card.Card) error {
		if err := settle(cards[t.FromCardID], cards[t.ToCardID], t.Amount, now); err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		stored, ok := s.transfers[t.ID]
		if !ok || stored.Status != StatusPending {
			return fmt.Errorf("transfer %s is no longer pending", t.ID)
		}
		completedAt := now.UTC()
		stored.Status = StatusCompleted
		stored.CompletedAt = &completedAt
		stored.ErrorMessage = ""
		s.transfers[t.ID] = stored
		done = stored
		return nil
	})
	return done, err
}

func (s *MemoryStore) MarkFailed(_ context.Context, id, message string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.transfers[id]
	if !ok {
		return notFound(id)
	}
	if stored.Status != StatusPending {
		return nil
	}
	failedAt := at.UTC()
	stored.Status = StatusFailed
	stored.CompletedAt = &failedAt
	stored.ErrorMessage = message
	s.transfers[id] = stored
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Transfer, error) {
	s.mu.RLock()
	t, ok := s.transfers[id]
	s.mu.RUnlock()
	if !ok {
		return Transfer{}, notFound(id)
	}
	if _, _, live := s.owners(ctx, t); !live {
		return Transfer{}, notFound(id)
	}
	return t, nil
}

func (s *MemoryStore) ListForUser(ctx context.Context, userID string, page paging.Request) (paging.Page[Transfer], error) {
	return paging.Slice(s.filter(ctx, func(_ Transfer, fromOwner, toOwner string) bool {
		return fromOwner == userID || toOwner == userID
	}), page), nil
}

func (s *MemoryStore) ListInternal(ctx context.Context, userID string, page paging.Request) (paging.Page[Transfer], error) {
	return paging.Slice(s.filter(ctx, func(_ Transfer, fromOwner, toOwner string) bool {
		return fromOwner == userID && toOwner == userID
	}), page), nil
}

func (s *MemoryStore) ListForCard(ctx context.Context, cardID string, page paging.Request) (paging.Page[Transfer], error) {
	return paging.Slice(s.filter(ctx, func(t Transfer, _, _ string) bool {
		return t.FromCardID == cardID || t.ToCardID == cardID
	}), page), nil
}

func (s *MemoryStore) ListBetween(ctx context.Context, cardA, cardB string, page paging.Request) (paging.Page[Transfer], error) {
	return paging.Slice(s.filter(ctx, func(t Transfer, _, _ string) bool {
		return (t.FromCardID == cardA && t.ToCardID == cardB) || (t.FromCardID == cardB && t.ToCardID == cardA)
	}), page), nil
}

func (s *MemoryStore) ListAll(ctx context.Context, filter Filter, page paging.Request) (paging.Page[Transfer], error) {
	return paging.Slice(s.filter(ctx, func(t Transfer, fromOwner, toOwner string) bool {
		if filter.Status != "" && t.Status != filter.Status {
			return false
		}
		if filter.UserID != "" && fromOwner != filter.UserID && toOwner != filter.UserID {
			return false
		}
		return filter.matchesTime(t.CreatedAt)
	}), page), nil
}

// owners resolves the owning users of both cards; live is false once either card is gone.
func (s *MemoryStore) owners(ctx context.Context, t Transfer) (fromOwner, toOwner string, live bool) {
	from, err := s.cards.Get(ctx, t.FromCardID)
	if err != nil {
		return "", "", false
	}
	to, err := s.cards.Get(ctx, t.ToCardID)
	if err != nil {
		return "", "", false
	}
	return from.OwnerID, to.OwnerID, true
}

// filter returns matching transfers newest first.
func (s *MemoryStore) filter(ctx context.Context, keep func(t Transfer, fromOwner, toOwner string) bool) []Transfer {
	s.mu.RLock()
	all := make([]Transfer, 0, len(s.transfers))
	for _, t := range s.transfers {
		all = append(all, t)
	}
	s.mu.RUnlock()

	var out []Transfer
	for _, t := range all {
		fromOwner, toOwner, live := s.owners(ctx, t)
		if live && keep(t, fromOwner, toOwner) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b Transfer) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
