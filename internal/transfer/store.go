package transfer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bankcards/cardledger/internal/apperr"
	"github.com/bankcards/cardledger/internal/card"
	"github.com/bankcards/cardledger/internal/paging"
)

// Store persists transfers and applies their balance movement.
type Store interface {
	// Create records a PENDING transfer.
	Create(ctx context.Context, t Transfer) error
	// Execute locks both cards, re-validates them, moves the amount and marks the
	// transfer COMPLETED as one atomic unit. Nothing is applied when it fails.
	Execute(ctx context.Context, t Transfer, now time.Time) (Transfer, error)
	// MarkFailed moves a PENDING transfer to FAILED.
	MarkFailed(ctx context.Context, id, message string, at time.Time) error
	Get(ctx context.Context, id string) (Transfer, error)
	ListForUser(ctx context.Context, userID string, page paging.Request) (paging.Page[Transfer], error)
	ListInternal(ctx context.Context, userID string, page paging.Request) (paging.Page[Transfer], error)
	ListForCard(ctx context.Context, cardID string, page paging.Request) (paging.Page[Transfer], error)
	ListBetween(ctx context.Context, cardA, cardB string, page paging.Request) (paging.Page[Transfer], error)
	ListAll(ctx context.Context, filter Filter, page paging.Request) (paging.Page[Transfer], error)
}

// settle re-checks both cards and moves amount between them in place.
func settle(from, to *card.Card, amount decimal.Decimal, now time.Time) error {
	if !from.IsTransactable(now) {
		return fmt.Errorf("source card %s is %s", from.ID, from.EffectiveStatus(now))
	}
	if !to.IsTransactable(now) {
		return fmt.Errorf("destination card %s is %s", to.ID, to.EffectiveStatus(now))
	}
	if from.Balance.LessThan(amount) {
		return fmt.Errorf("insufficient funds: available %s, requested %s",
			from.Balance.StringFixed(2), amount.StringFixed(2))
	}
	from.Balance = from.Balance.Sub(amount)
	to.Balance = to.Balance.Add(amount)
	from.UpdatedAt = now
	to.UpdatedAt = now
	return nil
}

// PostgresStore keeps transfers in PostgreSQL next to the cards table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed transfer store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const columns = `id, from_card_id, to_card_id, amount, description, status, created_at, completed_at, COALESCE(error_message, '')`

func (s *PostgresStore) Create(ctx context.Context, t Transfer) error {
	id, err := uuid.Parse(t.ID)
	if err != nil {
		return err
	}
	from, err := uuid.Parse(t.FromCardID)
	if err != nil {
		return err
	}
	to, err := uuid.Parse(t.ToCardID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO transfers (id, from_card_id, to_card_id, amount, description, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, from, to, t.Amount, t.Description, string(t.Status), t.CreatedAt.UTC())
	return err
}

// Execute locks the two card rows in ascending id order, so crossing
// transfers A->B and B->A queue on the same first lock instead of deadlocking.
func (s *PostgresStore) Execute(ctx context.Context, t Transfer, now time.Time) (Transfer, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transfer{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	transferID, err := uuid.Parse(t.ID)
	if err != nil {
		return Transfer{}, notFound(t.ID)
	}

	ids := []string{t.FromCardID, t.ToCardID}
	slices.Sort(ids)
	locked := make(map[string]*card.Card, 2)
	for _, id := range slices.Compact(ids) {
		c, err := lockCard(ctx, tx, id)
		if err != nil {
			return Transfer{}, err
		}
		locked[id] = &c
	}

	from, to := locked[t.FromCardID], locked[t.ToCardID]
	if err := settle(from, to, t.Amount, now); err != nil {
		return Transfer{}, err
	}

	const updateCard = `UPDATE cards SET balance = $1, updated_at = $2 WHERE id = $3`
	for _, c := range []*card.Card{from, to} {
		if _, err := tx.Exec(ctx, updateCard, c.Balance, c.UpdatedAt.UTC(), uuid.MustParse(c.ID)); err != nil {
			return Transfer{}, err
		}
	}

	cmd, err := tx.Exec(ctx, `UPDATE transfers SET status = $1, completed_at = $2, error_message = NULL
        WHERE id = $3 AND status = $4`, string(StatusCompleted), now.UTC(), transferID, string(StatusPending))
	if err != nil {
		return Transfer{}, err
	}
	if cmd.RowsAffected() == 0 {
		return Transfer{}, fmt.Errorf("transfer %s is no longer pending", t.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return Transfer{}, err
	}

	completedAt := now.UTC()
	t.Status = StatusCompleted
	t.CompletedAt = &completedAt
	t.ErrorMessage = ""
	return t, nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id, message string, at time.Time) error {
	transferID, err := uuid.Parse(id)
	if err != nil {
		return notFound(id)
	}
	_, err = s.db.Exec(ctx, `UPDATE transfers SET status = $1, completed_at = $2, error_message = $3
        WHERE id = $4 AND status = $5`, string(StatusFailed), at.UTC(), message, transferID, string(StatusPending))
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Transfer, error) {
	transferID, err := uuid.Parse(id)
	if err != nil {
		return Transfer{}, notFound(id)
	}
	t, err := scanTransfer(s.db.QueryRow(ctx, `SELECT `+columns+` FROM transfers WHERE id = $1`, transferID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transfer{}, notFound(id)
	}
	return t, err
}

const ownedBy = `(SELECT id FROM cards WHERE owner_id = $1)`

func (s *PostgresStore) ListForUser(ctx context.Context, userID string, page paging.Request) (paging.Page[Transfer], error) {
	owner, err := uuid.Parse(userID)
	if err != nil {
		return paging.New[Transfer](nil, page, 0), nil
	}
	return s.list(ctx, `from_card_id IN `+ownedBy+` OR to_card_id IN `+ownedBy, []any{owner}, page)
}

func (s *PostgresStore) ListInternal(ctx context.Context, userID string, page paging.Request) (paging.Page[Transfer], error) {
	owner, err := uuid.Parse(userID)
	if err != nil {
		return paging.New[Transfer](nil, page, 0), nil
	}
	return s.list(ctx, `from_card_id IN `+ownedBy+` AND to_card_id IN `+ownedBy, []any{owner}, page)
}

func (s *PostgresStore) ListForCard(ctx context.Context, cardID string, page paging.Request) (paging.Page[Transfer], error) {
	id, err := uuid.Parse(cardID)
	if err != nil {
		return paging.New[Transfer](nil, page, 0), nil
	}
	return s.list(ctx, `from_card_id = $1 OR to_card_id = $1`, []any{id}, page)
}

func (s *PostgresStore) ListBetween(ctx context.Context, cardA, cardB string, page paging.Request) (paging.Page[Transfer], error) {
	a, errA := uuid.Parse(cardA)
	b, errB := uuid.Parse(cardB)
	if errA != nil || errB != nil {
		return paging.New[Transfer](nil, page, 0), nil
	}
	return s.list(ctx, `(from_card_id = $1 AND to_card_id = $2) OR (from_card_id = $2 AND to_card_id = $1)`, []any{a, b}, page)
}

func (s *PostgresStore) ListAll(ctx context.Context, filter Filter, page paging.Request) (paging.Page[Transfer], error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.UserID != "" {
		owner, err := uuid.Parse(filter.UserID)
		if err != nil {
			return paging.New[Transfer](nil, page, 0), nil
		}
		args = append(args, owner)
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(from_card_id IN (SELECT id FROM cards WHERE owner_id = $%d) OR to_card_id IN (SELECT id FROM cards WHERE owner_id = $%d))", n, n))
	}
	if filter.From != nil {
		args = append(args, filter.From.UTC())
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, filter.To.UTC())
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	where := "TRUE"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}
	return s.list(ctx, where, args, page)
}

func (s *PostgresStore) list(ctx context.Context, where string, args []any, page paging.Request) (paging.Page[Transfer], error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM transfers WHERE `+where, args...).Scan(&total); err != nil {
		return paging.Page[Transfer]{}, err
	}
	query := fmt.Sprintf(`SELECT %s FROM transfers WHERE %s ORDER BY created_at DESC, id LIMIT %d OFFSET %d`,
		columns, where, page.Size, page.Offset())
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return paging.Page[Transfer]{}, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Transfer, error) { return scanTransfer(row) })
	if err != nil {
		return paging.Page[Transfer]{}, err
	}
	return paging.New(items, page, total), nil
}

func lockCard(ctx context.Context, tx pgx.Tx, id string) (card.Card, error) {
	cardID, err := uuid.Parse(id)
	if err != nil {
		return card.Card{}, apperr.New(apperr.KindCardNotFound, "card with id %s not found", id)
	}
	c, err := card.ScanCard(tx.QueryRow(ctx, `SELECT `+card.Columns+` FROM cards WHERE id = $1 FOR UPDATE`, cardID))
	if errors.Is(err, pgx.ErrNoRows) {
		return card.Card{}, apperr.New(apperr.KindCardNotFound, "card with id %s not found", id)
	}
	return c, err
}

func scanTransfer(row pgx.Row) (Transfer, error) {
	var (
		t          Transfer
		id, fr, to uuid.UUID
		status     string
	)
	if err := row.Scan(&id, &fr, &to, &t.Amount, &t.Description, &status, &t.CreatedAt, &t.CompletedAt, &t.ErrorMessage); err != nil {
		return Transfer{}, err
	}
	t.ID = id.String()
	t.FromCardID = fr.String()
	t.ToCardID = to.String()
	t.Status = Status(status)
	t.CreatedAt = t.CreatedAt.UTC()
	if t.CompletedAt != nil {
		utc := t.CompletedAt.UTC()
		t.CompletedAt = &utc
	}
	return t, nil
}

func notFound(id string) error {
	return apperr.New(apperr.KindTransactionNotFound, "transaction with id %s not found", id)
}
