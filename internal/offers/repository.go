package offers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Repository is the persistence boundary for offers and settings. Every
// operation is a single statement; there are no cross-call transactions.
// Mutations on absent rows report (false, nil) rather than an error.
type Repository interface {
	Add(ctx context.Context, name string, quantity int, price string) (Offer, error)
	Get(ctx context.Context, id int64) (Offer, error)
	List(ctx context.Context, activeOnly bool) ([]Offer, error)
	SetActive(ctx context.Context, id int64, active bool) (bool, error)
	UpdateQuantity(ctx context.Context, id int64, quantity int) (bool, error)
	UpdatePrice(ctx context.Context, id int64, price string) (bool, error)
	AttachAnnouncement(ctx context.Context, id, chatID int64, messageID int) (bool, error)

	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

var _ Repository = (*Store)(nil)

// Store is the sqlx/Postgres Repository implementation.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type offerRow struct {
	ID                int64         `db:"id"`
	Name              string        `db:"name"`
	Quantity          int           `db:"quantity"`
	Price             string        `db:"price"`
	Active            bool          `db:"active"`
	CreatedAt         time.Time     `db:"created_at"`
	AnnounceChatID    sql.NullInt64 `db:"announce_chat_id"`
	AnnounceMessageID sql.NullInt64 `db:"announce_message_id"`
}

func (r offerRow) toOffer() Offer {
	o := Offer{
		ID:        r.ID,
		Name:      r.Name,
		Quantity:  r.Quantity,
		Price:     r.Price,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
	}
	if r.AnnounceChatID.Valid && r.AnnounceMessageID.Valid {
		o.AnnounceChatID = r.AnnounceChatID.Int64
		o.AnnounceMessageID = int(r.AnnounceMessageID.Int64)
	}
	return o
}

const offerColumns = "id, name, quantity, price, active, created_at, announce_chat_id, announce_message_id"

// Add inserts a new active offer and returns it with the assigned id.
func (s *Store) Add(ctx context.Context, name string, quantity int, price string) (Offer, error) {
	const query = `
INSERT INTO offers (name, quantity, price, active, created_at)
VALUES ($1, $2, $3, TRUE, $4)
RETURNING ` + offerColumns
	var row offerRow
	if err := s.db.GetContext(ctx, &row, query, name, quantity, price, time.Now().UTC()); err != nil {
		return Offer{}, fmt.Errorf("add offer: %w", err)
	}
	return row.toOffer(), nil
}

// Get loads one offer by id. Returns ErrNotFound for unknown ids.
func (s *Store) Get(ctx context.Context, id int64) (Offer, error) {
	const query = `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`
	var row offerRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Offer{}, ErrNotFound
		}
		return Offer{}, fmt.Errorf("get offer: %w", err)
	}
	return row.toOffer(), nil
}

// List returns offers newest-created first, optionally only active ones.
func (s *Store) List(ctx context.Context, activeOnly bool) ([]Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var rows []offerRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	out := make([]Offer, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toOffer())
	}
	return out, nil
}

// SetActive flips the active flag. Reports whether a row existed.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	return s.exec(ctx, "set active", `UPDATE offers SET active = $1 WHERE id = $2`, active, id)
}

// UpdateQuantity sets the quantity. Reports whether a row existed.
func (s *Store) UpdateQuantity(ctx context.Context, id int64, quantity int) (bool, error) {
	return s.exec(ctx, "update quantity", `UPDATE offers SET quantity = $1 WHERE id = $2`, quantity, id)
}

// UpdatePrice sets the canonical price text. Reports whether a row existed.
func (s *Store) UpdatePrice(ctx context.Context, id int64, price string) (bool, error) {
	return s.exec(ctx, "update price", `UPDATE offers SET price = $1 WHERE id = $2`, price, id)
}

// AttachAnnouncement records the most recent published message location,
// overwriting any prior binding.
func (s *Store) AttachAnnouncement(ctx context.Context, id, chatID int64, messageID int) (bool, error) {
	const query = `UPDATE offers SET announce_chat_id = $1, announce_message_id = $2 WHERE id = $3`
	return s.exec(ctx, "attach announcement", query, chatID, messageID, id)
}

// GetSetting reads a settings row; the second return reports presence.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting: %w", err)
	}
	return value, true, nil
}

// SetSetting upserts a settings row.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	const query = `
INSERT INTO settings (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

func (s *Store) exec(ctx context.Context, op, query string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	return n > 0, nil
}
