package ratings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"animeranker/pkg/models"
)

// SQLStore keeps ratings in SQLite. It is meant to be opened on an
// in-memory database (see database.MemoryDSN).
type SQLStore struct {
	DB  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{DB: db, now: func() time.Time { return time.Now().UTC() }}
}

const selectRating = `
	SELECT id, anime_id, user_id, rating, created_at, updated_at
	FROM ratings
`

func (s *SQLStore) ListByUser(ctx context.Context, userID string) ([]models.Rating, error) {
	return s.list(ctx, selectRating+` WHERE user_id = ? ORDER BY rowid`, normalizeUser(userID))
}

func (s *SQLStore) ListBySubject(ctx context.Context, animeID int) ([]models.Rating, error) {
	return s.list(ctx, selectRating+` WHERE anime_id = ? ORDER BY rowid`, animeID)
}

func (s *SQLStore) Get(ctx context.Context, animeID int, userID string) (*models.Rating, error) {
	row := s.DB.QueryRowContext(ctx, selectRating+` WHERE anime_id = ? AND user_id = ?`, animeID, normalizeUser(userID))

	r, err := scanRating(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get rating: %w", err)
	}
	return r, nil
}

func (s *SQLStore) Create(ctx context.Context, animeID int, userID string, value int) (*models.Rating, error) {
	if !models.ValidRating(value) {
		return nil, ErrInvalidValue
	}
	userID = normalizeUser(userID)
	now := s.now()

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO ratings (id, anime_id, user_id, rating, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), animeID, userID, value, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert rating: %w", err)
	}
	return s.mustGet(ctx, animeID, userID)
}

func (s *SQLStore) Update(ctx context.Context, animeID int, userID string, value int) (*models.Rating, error) {
	if !models.ValidRating(value) {
		return nil, ErrInvalidValue
	}
	userID = normalizeUser(userID)

	res, err := s.DB.ExecContext(ctx, `
		UPDATE ratings
		SET rating = ?, updated_at = ?
		WHERE anime_id = ? AND user_id = ?
	`, value, s.now(), animeID, userID)
	if err != nil {
		return nil, fmt.Errorf("update rating: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update rating rows: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return s.mustGet(ctx, animeID, userID)
}

func (s *SQLStore) Upsert(ctx context.Context, animeID int, userID string, value int) (*models.Rating, bool, error) {
	if !models.ValidRating(value) {
		return nil, false, ErrInvalidValue
	}
	userID = normalizeUser(userID)
	id := uuid.NewString()
	now := s.now()

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO ratings (id, anime_id, user_id, rating, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(anime_id, user_id) DO UPDATE SET
			rating = excluded.rating,
			updated_at = excluded.updated_at
	`, id, animeID, userID, value, now, now)
	if err != nil {
		return nil, false, fmt.Errorf("upsert rating: %w", err)
	}

	r, err := s.mustGet(ctx, animeID, userID)
	if err != nil {
		return nil, false, err
	}
	return r, r.ID == id, nil
}

func (s *SQLStore) mustGet(ctx context.Context, animeID int, userID string) (*models.Rating, error) {
	r, err := s.Get(ctx, animeID, userID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("saved rating for anime %d not found", animeID)
	}
	return r, nil
}

func (s *SQLStore) list(ctx context.Context, query string, args ...any) ([]models.Rating, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	out := make([]models.Rating, 0)
	for rows.Next() {
		r, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rating row: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRating(sc scanner) (*models.Rating, error) {
	var r models.Rating
	if err := sc.Scan(&r.ID, &r.AnimeID, &r.UserID, &r.Rating, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
