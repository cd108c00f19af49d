package card

import (
    "cmp"
    "context"
    "slices"
    "sync"
    "time"

    "github.com/bankcards/cardledger/internal/apperr"
    "github.com/bankcards/cardledger/internal/money"
    "github.com/bankcards/cardledger/internal/paging"
)

// Locker runs fn with exclusive access to a set of cards and persists the
// balances fn leaves behind when it returns nil.
type Locker interface {
    WithLocked(ctx context.Context, ids []string, fn func(cards map[string]*Card) error) error
}

// MemoryRepository is an in-memory card store for tests and local runs.
// Each card has its own mutex so operations on disjoint cards never contend.
type MemoryRepository struct {
    mu      sync.RWMutex
    storage map[string]Card
    locks   map[string]*sync.Mutex
}

// NewMemoryRepository constructs an in-memory repository.
func NewMemoryRepository() *MemoryRepository {
    return &MemoryRepository{storage: make(map[string]Card), locks: make(map[string]*sync.Mutex)}
}

func (r *MemoryRepository) Create(_ context.Context, card Card) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    for _, existing := range r.storage {
        if existing.NumberCiphertext == card.NumberCiphertext || existing.NumberFingerprint == card.NumberFingerprint {
            return apperr.ErrDuplicateCardNumber
        }
    }
    r.storage[card.ID] = card
    r.locks[card.ID] = &sync.Mutex{}
    return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Card, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    card, ok := r.storage[id]
    if !ok {
        return Card{}, notFound(id)
    }
    return card, nil
}

// Update waits for the card's lock, so it never lands while a transfer is
// settling on an older snapshot.
func (r *MemoryRepository) Update(_ context.Context, card Card) error {
    r.mu.RLock()
    lock, ok := r.locks[card.ID]
    r.mu.RUnlock()
    if !ok {
        return notFound(card.ID)
    }

    lock.Lock()
    defer lock.Unlock()

    r.mu.Lock()
    defer r.mu.Unlock()
    stored, ok := r.storage[card.ID]
    if !ok {
        return notFound(card.ID)
    }
    stored.HolderName = card.HolderName
    stored.Status = card.Status
    stored.UpdatedAt = card.UpdatedAt
    r.storage[card.ID] = stored
    return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
    r.mu.RLock()
    lock, ok := r.locks[id]
    r.mu.RUnlock()
    if !ok {
        return notFound(id)
    }

    lock.Lock()
    defer lock.Unlock()

    r.mu.Lock()
    defer r.mu.Unlock()
    if _, ok := r.storage[id]; !ok {
        return notFound(id)
    }
    delete(r.storage, id)
    delete(r.locks, id)
    return nil
}

func (r *MemoryRepository) ExistsByNumber(_ context.Context, ciphertext, fingerprint string) (bool, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    for _, card := range r.storage {
        if card.NumberCiphertext == ciphertext || card.NumberFingerprint == fingerprint {
            return true, nil
        }
    }
    return false, nil
}

func (r *MemoryRepository) FindByFingerprint(_ context.Context, fingerprint string) (Card, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    for _, card := range r.storage {
        if card.NumberFingerprint == fingerprint {
            return card, nil
        }
    }
    return Card{}, apperr.New(apperr.KindCardNotFound, "no card matches the given number")
}

func (r *MemoryRepository) ListByOwner(_ context.Context, ownerID string, page paging.Request) (paging.Page[Card], error) {
    return paging.Slice(r.filter(func(c Card) bool { return c.OwnerID == ownerID }), page), nil
}

func (r *MemoryRepository) ListActiveByOwner(_ context.Context, ownerID string, now time.Time) ([]Card, error) {
    return r.filter(func(c Card) bool { return c.OwnerID == ownerID && c.IsTransactable(now) }), nil
}

func (r *MemoryRepository) ListAll(_ context.Context, filter Filter, page paging.Request) (paging.Page[Card], error) {
    return paging.Slice(r.filter(func(c Card) bool {
        if filter.Status != "" && c.Status != filter.Status {
            return false
        }
        return filter.OwnerID == "" || c.OwnerID == filter.OwnerID
    }), page), nil
}

func (r *MemoryRepository) Summarize(_ context.Context, ownerID string, now time.Time) (Summary, error) {
    s := Summary{ActiveBalance: money.Zero()}
    for _, c := range r.filter(func(c Card) bool { return c.OwnerID == ownerID }) {
        s.CardCount++
        if c.IsTransactable(now) {
            s.ActiveCount++
            s.ActiveBalance = money.Of(s.ActiveBalance.Add(c.Balance))
        }
    }
    return s, nil
}

// WithLocked takes the per-card locks in id order, so concurrent callers
// touching overlapping cards serialize without deadlocking.
func (r *MemoryRepository) WithLocked(ctx context.Context, ids []string, fn func(cards map[string]*Card) error) error {
    ordered := slices.Clone(ids)
    slices.Sort(ordered)
    ordered = slices.Compact(ordered)

    r.mu.RLock()
    locks := make([]*sync.Mutex, 0, len(ordered))
    for _, id := range ordered {
        lock, ok := r.locks[id]
        if !ok {
            r.mu.RUnlock()
            return notFound(id)
        }
        locks = append(locks, lock)
    }
    r.mu.RUnlock()

    for _, lock := range locks {
        lock.Lock()
        defer lock.Unlock()
    }
    if err := ctx.Err(); err != nil {
        return err
    }

    working := make(map[string]*Card, len(ordered))
    r.mu.RLock()
    for _, id := range ordered {
        card, ok := r.storage[id]
        if !ok {
            r.mu.RUnlock()
            return notFound(id)
        }
        working[id] = &card
    }
    r.mu.RUnlock()

    if err := fn(working); err != nil {
        return err
    }

    r.mu.Lock()
    defer r.mu.Unlock()
    for id, card := range working {
        stored := r.storage[id]
        stored.Balance = card.Balance
        stored.UpdatedAt = card.UpdatedAt
        r.storage[id] = stored
    }
    return nil
}

// filter returns matching cards newest first.
func (r *MemoryRepository) filter(keep func(Card) bool) []Card {
    r.mu.RLock()
    defer r.mu.RUnlock()
    var out []Card
    for _, card := range r.storage {
        if keep(card) {
            out = append(out, card)
        }
    }
    slices.SortFunc(out, func(a, b Card) int {
        if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
            return c
        }
        return cmp.Compare(a.ID, b.ID)
    })
    return out
}
