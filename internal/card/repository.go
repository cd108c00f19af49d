package card

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bankcards/cardledger/internal/apperr"
	"github.com/bankcards/cardledger/internal/money"
	"github.com/bankcards/cardledger/internal/paging"
)

// Repository persists card records. Update never touches the balance;
// balances only move through the transfer store.
type Repository interface {
	Create(ctx context.Context, card Card) error
	Get(ctx context.Context, id string) (Card, error)
	Update(ctx context.Context, card Card) error
	Delete(ctx context.Context, id string) error
	ExistsByNumber(ctx context.Context, ciphertext, fingerprint string) (bool, error)
	FindByFingerprint(ctx context.Context, fingerprint string) (Card, error)
	ListByOwner(ctx context.Context, ownerID string, page paging.Request) (paging.Page[Card], error)
	ListActiveByOwner(ctx context.Context, ownerID string, now time.Time) ([]Card, error)
	ListAll(ctx context.Context, filter Filter, page paging.Request) (paging.Page[Card], error)
	Summarize(ctx context.Context, ownerID string, now time.Time) (Summary, error)
}

// PostgresRepository stores cards in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Columns shared by every card query, in ScanCard order.
const Columns = `id, number_ciphertext, number_fingerprint, holder_name, status, expiry_date, balance, owner_id, created_at, updated_at`

// Create inserts a card record.
func (r *PostgresRepository) Create(ctx context.Context, card Card) error {
	cardID, err := uuid.Parse(card.ID)
	if err != nil {
		return err
	}
	ownerID, err := uuid.Parse(card.OwnerID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO cards (`+Columns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		cardID, card.NumberCiphertext, card.NumberFingerprint, card.HolderName, string(card.Status),
		card.ExpiryDate, card.Balance, ownerID, card.CreatedAt.UTC(), card.UpdatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.ErrDuplicateCardNumber
	}
	return err
}

// Get fetches a card by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Card, error) {
	cardID, err := uuid.Parse(id)
	if err != nil {
		return Card{}, notFound(id)
	}
	card, err := ScanCard(r.db.QueryRow(ctx, `SELECT `+Columns+` FROM cards WHERE id = $1`, cardID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Card{}, notFound(id)
	}
	return card, err
}

// Update writes holder name and status.
func (r *PostgresRepository) Update(ctx context.Context, card Card) error {
	cardID, err := uuid.Parse(card.ID)
	if err != nil {
		return notFound(card.ID)
	}
	cmd, err := r.db.Exec(ctx, `UPDATE cards SET holder_name = $1, status = $2, updated_at = $3 WHERE id = $4`,
		card.HolderName, string(card.Status), card.UpdatedAt.UTC(), cardID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return notFound(card.ID)
	}
	return nil
}

// Delete removes a card; its transfers go with it through ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	cardID, err := uuid.Parse(id)
	if err != nil {
		return notFound(id)
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM cards WHERE id = $1`, cardID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

// ExistsByNumber checks both the ciphertext and the fingerprint indexes.
func (r *PostgresRepository) ExistsByNumber(ctx context.Context, ciphertext, fingerprint string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cards WHERE number_ciphertext = $1 OR number_fingerprint = $2)`,
		ciphertext, fingerprint).Scan(&exists)
	return exists, err
}

// FindByFingerprint looks a card up by the keyed digest of its number.
func (r *PostgresRepository) FindByFingerprint(ctx context.Context, fingerprint string) (Card, error) {
	card, err := ScanCard(r.db.QueryRow(ctx, `SELECT `+Columns+` FROM cards WHERE number_fingerprint = $1`, fingerprint))
	if errors.Is(err, pgx.ErrNoRows) {
		return Card{}, apperr.New(apperr.KindCardNotFound, "no card matches the given number")
	}
	return card, err
}

// ListByOwner pages through a user's cards, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string, page paging.Request) (paging.Page[Card], error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return paging.New[Card](nil, page, 0), nil
	}
	return r.list(ctx, `owner_id = $1`, []any{owner}, page)
}

// ListActiveByOwner returns the owner's ACTIVE, unexpired cards.
func (r *PostgresRepository) ListActiveByOwner(ctx context.Context, ownerID string, now time.Time) ([]Card, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+Columns+` FROM cards
        WHERE owner_id = $1 AND status = 'ACTIVE' AND expiry_date >= $2::date
        ORDER BY created_at DESC`, owner, now.UTC())
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Card, error) { return ScanCard(row) })
}

// ListAll pages through every card matching filter.
func (r *PostgresRepository) ListAll(ctx context.Context, filter Filter, page paging.Request) (paging.Page[Card], error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.OwnerID != "" {
		owner, err := uuid.Parse(filter.OwnerID)
		if err != nil {
			return paging.New[Card](nil, page, 0), nil
		}
		args = append(args, owner)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	where := "TRUE"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}
	return r.list(ctx, where, args, page)
}

// Summarize counts the owner's cards and sums the balance of active ones.
func (r *PostgresRepository) Summarize(ctx context.Context, ownerID string, now time.Time) (Summary, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return Summary{ActiveBalance: money.Zero()}, nil
	}
	var (
		s      Summary
		active int64
		total  int64
		sum    decimal.Decimal
	)
	err = r.db.QueryRow(ctx, `SELECT COUNT(*),
            COUNT(*) FILTER (WHERE status = 'ACTIVE' AND expiry_date >= $2::date),
            COALESCE(SUM(balance) FILTER (WHERE status = 'ACTIVE' AND expiry_date >= $2::date), 0)
        FROM cards WHERE owner_id = $1`, owner, now.UTC()).Scan(&total, &active, &sum)
	if err != nil {
		return Summary{}, err
	}
	s.ActiveBalance = money.Of(sum)
	s.CardCount = int(total)
	s.ActiveCount = int(active)
	return s, nil
}

func (r *PostgresRepository) list(ctx context.Context, where string, args []any, page paging.Request) (paging.Page[Card], error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM cards WHERE `+where, args...).Scan(&total); err != nil {
		return paging.Page[Card]{}, err
	}
	query := fmt.Sprintf(`SELECT %s FROM cards WHERE %s ORDER BY created_at DESC, id LIMIT %d OFFSET %d`,
		Columns, where, page.Size, page.Offset())
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return paging.Page[Card]{}, err
	}
	cards, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Card, error) { return ScanCard(row) })
	if err != nil {
		return paging.Page[Card]{}, err
	}
	return paging.New(cards, page, total), nil
}

// ScanCard reads one row selected with Columns.
func ScanCard(row pgx.Row) (Card, error) {
	var (
		c       Card
		id      uuid.UUID
		ownerID uuid.UUID
		status  string
	)
	if err := row.Scan(&id, &c.NumberCiphertext, &c.NumberFingerprint, &c.HolderName, &status,
		&c.ExpiryDate, &c.Balance, &ownerID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Card{}, err
	}
	c.ID = id.String()
	c.OwnerID = ownerID.String()
	c.Status = Status(status)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func notFound(id string) error {
	return apperr.New(apperr.KindCardNotFound, "card with id %s not found", id)
}
