package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bankcards/cardledger/internal/access"
	"github.com/bankcards/cardledger/internal/apperr"
	"github.com/bankcards/cardledger/internal/card"
	"github.com/bankcards/cardledger/internal/events"
	"github.com/bankcards/cardledger/internal/identity"
	"github.com/bankcards/cardledger/internal/money"
	"github.com/bankcards/cardledger/internal/notification"
	"github.com/bankcards/cardledger/internal/paging"
)

// Cards is the slice of the card service that transfers depend on.
type Cards interface {
	Load(ctx context.Context, id string) (card.Card, error)
	Mask(c card.Card) (string, error)
	Get(ctx context.Context, id, actor string) (card.View, error)
	List(ctx context.Context, actor string, page paging.Request) (paging.Page[card.View], error)
	Invalidate(ctx context.Context, ids ...string)
}

// Directory resolves an acting username to its user record.
type Directory interface {
	FindByUsername(ctx context.Context, username string) (identity.User, error)
}

// Service moves funds between a user's own cards and answers transfer queries.
type Service struct {
	store    Store
	cards    Cards
	users    Directory
	notifier notification.Notifier
	events   events.Publisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the transfer engine. notifier and publisher may be nil.
func NewService(store Store, cards Cards, users Directory, notifier notification.Notifier, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		store:    store,
		cards:    cards,
		users:    users,
		notifier: notifier,
		events:   publisher,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateInput captures the data needed to move funds between two cards.
type CreateInput struct {
	FromCardID  string
	ToCardID    string
	Amount      decimal.Decimal
	Description string
}

// Create validates the request, records it PENDING and executes it. A failed
// execution leaves a FAILED record behind and reports InvalidTransaction.
func (s *Service) Create(ctx context.Context, input CreateInput, actor string) (View, error) {
	principal, err := s.users.FindByUsername(ctx, actor)
	if err != nil {
		return View{}, err
	}
	from, err := s.cards.Load(ctx, input.FromCardID)
	if err != nil {
		return View{}, err
	}
	to, err := s.cards.Load(ctx, input.ToCardID)
	if err != nil {
		return View{}, err
	}

	amount, err := s.validate(principal, from, to, input)
	if err != nil {
		return View{}, err
	}
	fromMasked, err := s.cards.Mask(from)
	if err != nil {
		return View{}, err
	}
	toMasked, err := s.cards.Mask(to)
	if err != nil {
		return View{}, err
	}
	if from.Balance.LessThan(amount) {
		return View{}, &apperr.InsufficientFundsError{
			MaskedNumber: fromMasked,
			Available:    from.Balance,
			Requested:    amount,
		}
	}

	pending := Transfer{
		ID:          uuid.New().String(),
		FromCardID:  from.ID,
		ToCardID:    to.ID,
		Amount:      amount,
		Description: input.Description,
		Status:      StatusPending,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.Create(ctx, pending); err != nil {
		return View{}, err
	}

	done, err := s.store.Execute(ctx, pending, s.now().UTC())
	if err != nil {
		return View{}, s.fail(ctx, pending, principal, fromMasked, toMasked, err)
	}
	s.cards.Invalidate(ctx, from.ID, to.ID)

	view := project(done, fromMasked, toMasked)
	s.logger.Info("transfer completed",
		slog.String("transfer_id", done.ID),
		slog.String("from_card", fromMasked),
		slog.String("to_card", toMasked),
		slog.String("amount", amount.StringFixed(2)),
		slog.String("actor", actor),
	)
	s.announce(ctx, events.TypeTransferCompleted, view, notification.Message{
		Kind:        notification.KindTransferCompleted,
		Destination: principal.Email,
		Subject:     "Transfer completed",
		Body: fmt.Sprintf("%s was moved from card %s to card %s.",
			amount.StringFixed(2), fromMasked, toMasked),
	})
	return view, nil
}

// validate applies the transfer rules in order and returns the normalized amount.
func (s *Service) validate(principal identity.User, from, to card.Card, input CreateInput) (decimal.Decimal, error) {
	now := s.now()
	switch {
	case from.OwnerID != principal.ID:
		return decimal.Zero, apperr.New(apperr.KindAccessDenied, "source card does not belong to user %s", principal.Username)
	case to.OwnerID != principal.ID:
		return decimal.Zero, apperr.New(apperr.KindInvalidTransaction, "transfers are only allowed between your own cards")
	case from.ID == to.ID:
		return decimal.Zero, apperr.New(apperr.KindInvalidTransaction, "source and destination cards must differ")
	case from.Status != card.StatusActive || to.Status != card.StatusActive:
		return decimal.Zero, apperr.New(apperr.KindInvalidTransaction, "both cards must be active")
	case from.IsExpired(now) || to.IsExpired(now):
		return decimal.Zero, apperr.New(apperr.KindInvalidTransaction, "expired cards cannot take part in a transfer")
	}

	amount := input.Amount
	if !money.HasScale(amount) {
		return decimal.Zero, apperr.New(apperr.KindInvalidTransaction, "amount must have at most 2 decimal places")
	}
	amount = amount.Round(money.Scale)
	if amount.LessThan(MinAmount) || amount.GreaterThan(MaxAmount) {
		return decimal.Zero, apperr.New(apperr.KindInvalidTransaction, "amount must be between %s and %s",
			MinAmount.StringFixed(2), MaxAmount.StringFixed(2))
	}
	if utf8.RuneCountInString(input.Description) > MaxDescriptionLen {
		return decimal.Zero, apperr.New(apperr.KindInvalidTransaction, "description must not exceed %d characters", MaxDescriptionLen)
	}
	return amount, nil
}

// fail records the execution failure. An interrupted call leaves the record
// PENDING for the caller to re-read.
func (s *Service) fail(ctx context.Context, t Transfer, principal identity.User, fromMasked, toMasked string, cause error) error {
	if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		s.logger.Warn("transfer interrupted, left pending",
			slog.String("transfer_id", t.ID),
			slog.Any("error", cause),
		)
		return apperr.Wrap(apperr.KindTransactionPending, cause, "transfer %s left pending", t.ID)
	}

	message := fmt.Sprintf("transfer execution failed: %v", cause)
	failedAt := s.now().UTC()
	if err := s.store.MarkFailed(ctx, t.ID, message, failedAt); err != nil {
		s.logger.Error("mark transfer failed",
			slog.String("transfer_id", t.ID),
			slog.Any("error", err),
		)
	}
	s.logger.Warn("transfer failed",
		slog.String("transfer_id", t.ID),
		slog.String("reason", message),
	)

	t.Status = StatusFailed
	t.CompletedAt = &failedAt
	t.ErrorMessage = message
	s.announce(ctx, events.TypeTransferFailed, project(t, fromMasked, toMasked), notification.Message{
		Kind:        notification.KindTransferFailed,
		Destination: principal.Email,
		Subject:     "Transfer failed",
		Body: fmt.Sprintf("Your transfer of %s from card %s to card %s could not be completed.",
			t.Amount.StringFixed(2), fromMasked, toMasked),
	})
	return apperr.Wrap(apperr.KindInvalidTransaction, cause, "%s", message)
}

// announce publishes the event and notifies the owner. Delivery failures are logged only.
func (s *Service) announce(ctx context.Context, eventType string, view View, msg notification.Message) {
	if err := s.events.Publish(ctx, events.Event{Type: eventType, TransferID: view.ID, Payload: view}); err != nil {
		s.logger.Warn("publish transfer event", slog.String("type", eventType), slog.Any("error", err))
	}
	if s.notifier != nil {
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.Warn("notify transfer", slog.String("kind", msg.Kind), slog.Any("error", err))
		}
	}
}

// Get returns a transfer visible to the acting user: they own either card or are an admin.
func (s *Service) Get(ctx context.Context, id, actor string) (View, error) {
	principal, err := s.users.FindByUsername(ctx, actor)
	if err != nil {
		return View{}, err
	}
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	from, err := s.cards.Load(ctx, t.FromCardID)
	if err != nil {
		return View{}, notFound(id)
	}
	to, err := s.cards.Load(ctx, t.ToCardID)
	if err != nil {
		return View{}, notFound(id)
	}
	if err := access.RequireAny(principal, from.OwnerID, to.OwnerID); err != nil {
		return View{}, err
	}
	fromMasked, err := s.cards.Mask(from)
	if err != nil {
		return View{}, err
	}
	toMasked, err := s.cards.Mask(to)
	if err != nil {
		return View{}, err
	}
	return project(t, fromMasked, toMasked), nil
}

// ListForUser pages through transfers touching any of the acting user's cards.
func (s *Service) ListForUser(ctx context.Context, actor string, page paging.Request) (paging.Page[View], error) {
	principal, err := s.users.FindByUsername(ctx, actor)
	if err != nil {
		return paging.Page[View]{}, err
	}
	transfers, err := s.store.ListForUser(ctx, principal.ID, page.Normalize(paging.DefaultSize))
	if err != nil {
		return paging.Page[View]{}, err
	}
	return s.views(ctx, transfers)
}

// ListInternal pages through transfers whose both cards belong to the acting user.
func (s *Service) ListInternal(ctx context.Context, actor string, page paging.Request) (paging.Page[View], error) {
	principal, err := s.users.FindByUsername(ctx, actor)
	if err != nil {
		return paging.Page[View]{}, err
	}
	transfers, err := s.store.ListInternal(ctx, principal.ID, page.Normalize(paging.DefaultSize))
	if err != nil {
		return paging.Page[View]{}, err
	}
	return s.views(ctx, transfers)
}

// ListForCard pages through a card's history, either direction.
func (s *Service) ListForCard(ctx context.Context, cardID, actor string, page paging.Request) (paging.Page[View], error) {
	if err := s.requireCards(ctx, actor, cardID); err != nil {
		return paging.Page[View]{}, err
	}
	transfers, err := s.store.ListForCard(ctx, cardID, page.Normalize(paging.DefaultSize))
	if err != nil {
		return paging.Page[View]{}, err
	}
	return s.views(ctx, transfers)
}

// ListBetween pages through transfers between two cards in both directions.
func (s *Service) ListBetween(ctx context.Context, cardA, cardB, actor string, page paging.Request) (paging.Page[View], error) {
	if err := s.requireCards(ctx, actor, cardA, cardB); err != nil {
		return paging.Page[View]{}, err
	}
	transfers, err := s.store.ListBetween(ctx, cardA, cardB, page.Normalize(paging.DefaultSize))
	if err != nil {
		return paging.Page[View]{}, err
	}
	return s.views(ctx, transfers)
}

// ListAll is the administrative listing with optional filters.
func (s *Service) ListAll(ctx context.Context, actor string, filter Filter, page paging.Request) (paging.Page[View], error) {
	principal, err := s.users.FindByUsername(ctx, actor)
	if err != nil {
		return paging.Page[View]{}, err
	}
	if err := access.RequireAdmin(principal); err != nil {
		return paging.Page[View]{}, err
	}
	transfers, err := s.store.ListAll(ctx, filter, page.Normalize(paging.DefaultAdminSize))
	if err != nil {
		return paging.Page[View]{}, err
	}
	return s.views(ctx, transfers)
}

// Balance reports one card's balance under the card access rule.
func (s *Service) Balance(ctx context.Context, cardID, actor string) (BalanceView, error) {
	view, err := s.cards.Get(ctx, cardID, actor)
	if err != nil {
		return BalanceView{}, err
	}
	return balanceOf(view), nil
}

// ListBalances pages through the balances of the acting user's cards.
func (s *Service) ListBalances(ctx context.Context, actor string, page paging.Request) (paging.Page[BalanceView], error) {
	cards, err := s.cards.List(ctx, actor, page)
	if err != nil {
		return paging.Page[BalanceView]{}, err
	}
	return paging.Map(cards, func(v card.View) (BalanceView, error) { return balanceOf(v), nil })
}

func (s *Service) requireCards(ctx context.Context, actor string, ids ...string) error {
	principal, err := s.users.FindByUsername(ctx, actor)
	if err != nil {
		return err
	}
	for _, id := range ids {
		c, err := s.cards.Load(ctx, id)
		if err != nil {
			return err
		}
		if err := access.Require(principal, c.OwnerID); err != nil {
			return err
		}
	}
	return nil
}

// views projects a page of transfers, masking each card number once.
func (s *Service) views(ctx context.Context, page paging.Page[Transfer]) (paging.Page[View], error) {
	masks := make(map[string]string)
	mask := func(id string) string {
		if m, ok := masks[id]; ok {
			return m
		}
		m := "****"
		if c, err := s.cards.Load(ctx, id); err == nil {
			if masked, err := s.cards.Mask(c); err == nil {
				m = masked
			}
		}
		masks[id] = m
		return m
	}
	return paging.Map(page, func(t Transfer) (View, error) {
		return project(t, mask(t.FromCardID), mask(t.ToCardID)), nil
	})
}

func project(t Transfer, fromMasked, toMasked string) View {
	return View{
		ID:               t.ID,
		FromCardID:       t.FromCardID,
		FromMaskedNumber: fromMasked,
		ToCardID:         t.ToCardID,
		ToMaskedNumber:   toMasked,
		Amount:           money.Of(t.Amount),
		Description:      t.Description,
		Status:           t.Status,
		CreatedAt:        t.CreatedAt,
		CompletedAt:      t.CompletedAt,
		ErrorMessage:     t.ErrorMessage,
	}
}

func balanceOf(v card.View) BalanceView {
	return BalanceView{CardID: v.ID, MaskedNumber: v.MaskedNumber, Balance: v.Balance, HolderName: v.HolderName}
}
