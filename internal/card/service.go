package card

import (
    "context"
    "log/slog"
    "strings"
    "time"
    "unicode/utf8"

    "github.com/google/uuid"
    "github.com/shopspring/decimal"

    "github.com/bankcards/cardledger/internal/access"
    "github.com/bankcards/cardledger/internal/apperr"
    "github.com/bankcards/cardledger/internal/cipher"
    "github.com/bankcards/cardledger/internal/identity"
    "github.com/bankcards/cardledger/internal/money"
    "github.com/bankcards/cardledger/internal/paging"
)

const maxHolderNameLen = 100

// Directory resolves an acting username to its user record.
type Directory interface {
    FindByUsername(ctx context.Context, username string) (identity.User, error)
}

// ViewStore caches card views keyed by card id. Fill must drop the value
// when Delete ran for the key after Generation was read.
type ViewStore interface {
    Get(ctx context.Context, key string) (View, bool)
    Generation(ctx context.Context, key string) (int64, bool)
    Fill(ctx context.Context, key string, value View, gen int64)
    Delete(ctx context.Context, keys ...string)
}

// Service owns card lifecycle: issuing, reading, blocking and deleting cards.
type Service struct {
    repo   Repository
    cipher *cipher.Cipher
    users  Directory
    views  ViewStore
    logger *slog.Logger
    now    func() time.Time
}

// NewService builds a card service instance.
func NewService(repo Repository, c *cipher.Cipher, users Directory, logger *slog.Logger) *Service {
    return &Service{repo: repo, cipher: c, users: users, logger: logger, now: time.Now}
}

// UseCache enables read-through caching of card views.
func (s *Service) UseCache(views ViewStore) {
    s.views = views
}

// CreateInput captures data required to issue a card.
type CreateInput struct {
    Number     string
    HolderName string
}

// Create issues a new ACTIVE card with a zero balance owned by the acting user.
func (s *Service) Create(ctx context.Context, input CreateInput, actor string) (View, error) {
    principal, err := s.users.FindByUsername(ctx, actor)
    if err != nil {
        return View{}, err
    }

    number := cipher.Digits(input.Number)
    if err := validateNumber(number); err != nil {
        return View{}, err
    }
    holder, err := validateHolderName(input.HolderName)
    if err != nil {
        return View{}, err
    }

    ciphertext, err := s.cipher.Encrypt(number)
    if err != nil {
        return View{}, err
    }
    fingerprint := s.cipher.Fingerprint(number)

    exists, err := s.repo.ExistsByNumber(ctx, ciphertext, fingerprint)
    if err != nil {
        return View{}, err
    }
    if exists {
        return View{}, apperr.New(apperr.KindDuplicateCardNumber, "card %s is already registered", cipher.Mask(number))
    }

    now := s.now().UTC()
    card := Card{
        ID:                uuid.New().String(),
        NumberCiphertext:  ciphertext,
        NumberFingerprint: fingerprint,
        HolderName:        holder,
        Status:            StatusActive,
        ExpiryDate:        dateOf(now.AddDate(ValidityPeriod, 0, 0)),
        Balance:           decimal.Zero,
        OwnerID:           principal.ID,
        CreatedAt:         now,
        UpdatedAt:         now,
    }

    if err := s.repo.Create(ctx, card); err != nil {
        return View{}, err
    }

    s.logger.Info("card issued",
        slog.String("card_id", card.ID),
        slog.String("owner_id", card.OwnerID),
        slog.String("card_number", cipher.Mask(number)),
    )
    return s.Project(card)
}

// Get returns a card visible to the acting user.
func (s *Service) Get(ctx context.Context, id, actor string) (View, error) {
    principal, err := s.users.FindByUsername(ctx, actor)
    if err != nil {
        return View{}, err
    }

    var (
        gen  int64
        fill bool
    )
    if s.views != nil {
        if view, ok := s.views.Get(ctx, id); ok {
            if err := access.Require(principal, view.OwnerID); err != nil {
                return View{}, err
            }
            if dateOf(s.now()).After(view.ExpiryDate) {
                view.Status = StatusExpired
            }
            return view, nil
        }
        gen, fill = s.views.Generation(ctx, id)
    }

    card, err := s.repo.Get(ctx, id)
    if err != nil {
        return View{}, err
    }
    if err := access.Require(principal, card.OwnerID); err != nil {
        return View{}, err
    }
    view, err := s.Project(card)
    if err != nil {
        return View{}, err
    }
    if fill {
        s.views.Fill(ctx, id, view, gen)
    }
    return view, nil
}

// List pages through the acting user's own cards, newest first.
func (s *Service) List(ctx context.Context, actor string, page paging.Request) (paging.Page[View], error) {
    principal, err := s.users.FindByUsername(ctx, actor)
    if err != nil {
        return paging.Page[View]{}, err
    }
    cards, err := s.repo.ListByOwner(ctx, principal.ID, page.Normalize(paging.DefaultSize))
    if err != nil {
        return paging.Page[View]{}, err
    }
    return paging.Map(cards, s.Project)
}

// ListActive returns the acting user's cards that can currently move funds.
func (s *Service) ListActive(ctx context.Context, actor string) ([]View, error) {
    principal, err := s.users.FindByUsername(ctx, actor)
    if err != nil {
        return nil, err
    }
    cards, err := s.repo.ListActiveByOwner(ctx, principal.ID, s.now())
    if err != nil {
        return nil, err
    }
    views := make([]View, 0, len(cards))
    for _, c := range cards {
        v, err := s.Project(c)
        if err != nil {
            return nil, err
        }
        views = append(views, v)
    }
    return views, nil
}

// Summary counts the acting user's cards and totals the active balance.
func (s *Service) Summary(ctx context.Context, actor string) (Summary, error) {
    principal, err := s.users.FindByUsername(ctx, actor)
    if err != nil {
        return Summary{}, err
    }
    return s.repo.Summarize(ctx, principal.ID, s.now())
}

// Update applies a partial change of holder name and/or status.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput, actor string) (View, error) {
    return s.mutate(ctx, id, actor, func(c *Card) error {
        if input.HolderName != nil {
            holder, err := validateHolderName(*input.HolderName)
            if err != nil {
                return err
            }
            c.HolderName = holder
        }
        if input.Status != nil {
            switch *input.Status {
            case StatusActive, StatusBlocked:
                c.Status = *input.Status
            default:
                return apperr.New(apperr.KindInvalidCard, "status %q cannot be set directly", *input.Status)
            }
        }
        return nil
    })
}

// SetBlocked toggles the card between BLOCKED and ACTIVE. Repeating the
// current state is a no-op.
func (s *Service) SetBlocked(ctx context.Context, id, actor string, blocked bool) (View, error) {
    target := StatusActive
    if blocked {
        target = StatusBlocked
    }
    return s.Update(ctx, id, UpdateInput{Status: &target}, actor)
}

// Delete removes the card and, through the store, its transfer history.
func (s *Service) Delete(ctx context.Context, id, actor string) error {
    principal, err := s.users.FindByUsername(ctx, actor)
    if err != nil {
        return err
    }
    card, err := s.repo.Get(ctx, id)
    if err != nil {
        return err
    }
    if err := access.Require(principal, card.OwnerID); err != nil {
        return err
    }
    if err := s.repo.Delete(ctx, id); err != nil {
        return err
    }
    s.Invalidate(ctx, id)
    s.logger.Info("card deleted", slog.String("card_id", id), slog.String("actor", actor))
    return nil
}

// FindByNumber is an administrative lookup by clear card number.
func (s *Service) FindByNumber(ctx context.Context, number, actor string) (View, error) {
    principal, err := s.users.FindByUsername(ctx, actor)
    if err != nil {
        return View{}, err
    }
    if err := access.RequireAdmin(principal); err != nil {
        return View{}, err
    }
    card, err := s.repo.FindByFingerprint(ctx, s.cipher.Fingerprint(number))
    if err != nil {
        return View{}, err
    }
    return s.Project(card)
}

// ListAll is the administrative listing across every owner.
func (s *Service) ListAll(ctx context.Context, actor string, filter Filter, page paging.Request) (paging.Page[View], error) {
    principal, err := s.users.FindByUsername(ctx, actor)
    if err != nil {
        return paging.Page[View]{}, err
    }
    if err := access.RequireAdmin(principal); err != nil {
        return paging.Page[View]{}, err
    }
    cards, err := s.repo.ListAll(ctx, filter, page.Normalize(paging.DefaultAdminSize))
    if err != nil {
        return paging.Page[View]{}, err
    }
    return paging.Map(cards, s.Project)
}

// Load returns the raw record without access checks. Callers must authorize.
func (s *Service) Load(ctx context.Context, id string) (Card, error) {
    return s.repo.Get(ctx, id)
}

// Mask renders the display form of a stored card number.
func (s *Service) Mask(c Card) (string, error) {
    return s.cipher.MaskCiphertext(c.NumberCiphertext)
}

// Project converts a record into its outward view.
func (s *Service) Project(c Card) (View, error) {
    masked, err := s.Mask(c)
    if err != nil {
        return View{}, err
    }
    return View{
        ID:           c.ID,
        MaskedNumber: masked,
        HolderName:   c.HolderName,
        Status:       c.EffectiveStatus(s.now()),
        ExpiryDate:   c.ExpiryDate,
        Balance:      money.Of(c.Balance),
        OwnerID:      c.OwnerID,
        CreatedAt:    c.CreatedAt,
        UpdatedAt:    c.UpdatedAt,
    }, nil
}

// Invalidate evicts cached views, e.g. after balances moved.
func (s *Service) Invalidate(ctx context.Context, ids ...string) {
    if s.views != nil {
        s.views.Delete(ctx, ids...)
    }
}

func (s *Service) mutate(ctx context.Context, id, actor string, fn func(*Card) error) (View, error) {
    principal, err := s.users.FindByUsername(ctx, actor)
    if err != nil {
        return View{}, err
    }
    card, err := s.repo.Get(ctx, id)
    if err != nil {
        return View{}, err
    }
    if err := access.Require(principal, card.OwnerID); err != nil {
        return View{}, err
    }

    before := card
    if err := fn(&card); err != nil {
        return View{}, err
    }
    if card.HolderName != before.HolderName || card.Status != before.Status {
        card.UpdatedAt = s.now().UTC()
        if err := s.repo.Update(ctx, card); err != nil {
            return View{}, err
        }
        s.Invalidate(ctx, id)
        s.logger.Info("card updated",
            slog.String("card_id", id),
            slog.String("status", string(card.Status)),
            slog.String("actor", actor),
        )
    }
    return s.Project(card)
}

func validateNumber(number string) error {
    if len(number) != NumberLength {
        return apperr.New(apperr.KindInvalidCard, "card number must contain 16 digits")
    }
    for _, r := range number {
        if r < '0' || r > '9' {
            return apperr.New(apperr.KindInvalidCard, "card number must be numeric")
        }
    }
    return nil
}

func validateHolderName(name string) (string, error) {
    name = strings.TrimSpace(name)
    if name == "" {
        return "", apperr.New(apperr.KindInvalidCard, "cardholder name is required")
    }
    if utf8.RuneCountInString(name) > maxHolderNameLen {
        return "", apperr.New(apperr.KindInvalidCard, "cardholder name must not exceed %d characters", maxHolderNameLen)
    }
    return name, nil
}

// dateOf truncates t to its UTC calendar day.
func dateOf(t time.Time) time.Time {
    y, m, d := t.UTC().Date()
    return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
