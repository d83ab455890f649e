package watchlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"anisync/pkg/models"
)

// ErrExists means the anime is already on the user's list.
var ErrExists = errors.New("watchlist: entry already exists")

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// UpdateFields carries the patchable subset of an entry; nil means unchanged.
type UpdateFields struct {
	Status   *models.WatchStatus
	Score    *float64
	Progress *int
}

const entryColumns = `user_id, anime_id, status, score, progress, created_at, updated_at`

func (r *Repo) Add(ctx context.Context, e models.WatchlistEntry) (*models.WatchlistEntry, error) {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO user_anime_list (user_id, anime_id, status, score, progress)
		VALUES (?, ?, ?, ?, ?)
	`, e.UserID, e.AnimeID, string(e.Status), e.Score, e.Progress)
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) &&
			(serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || serr.ExtendedCode == sqlite3.ErrConstraintUnique) {
			return nil, ErrExists
		}
		return nil, fmt.Errorf("add watchlist entry: %w", err)
	}
	return r.Get(ctx, e.UserID, e.AnimeID)
}

func (r *Repo) Get(ctx context.Context, userID string, animeID int64) (*models.WatchlistEntry, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM user_anime_list
		WHERE user_id = ? AND anime_id = ?
	`, userID, animeID)
	return scanEntry(row)
}

func (r *Repo) List(ctx context.Context, userID string, status models.WatchStatus) ([]models.WatchlistEntry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = r.DB.QueryContext(ctx, `
			SELECT `+entryColumns+` FROM user_anime_list
			WHERE user_id = ?
			ORDER BY created_at DESC
		`, userID)
	} else {
		rows, err = r.DB.QueryContext(ctx, `
			SELECT `+entryColumns+` FROM user_anime_list
			WHERE user_id = ? AND status = ?
			ORDER BY created_at DESC
		`, userID, string(status))
	}
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	defer rows.Close()

	var out []models.WatchlistEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// Update patches the provided fields; returns nil when no entry matched.
func (r *Repo) Update(ctx context.Context, userID string, animeID int64, f UpdateFields) (*models.WatchlistEntry, error) {
	set := "updated_at = CURRENT_TIMESTAMP"
	args := make([]any, 0, 4)
	if f.Status != nil {
		set += ", status = ?"
		args = append(args, string(*f.Status))
	}
	if f.Score != nil {
		set += ", score = ?"
		args = append(args, *f.Score)
	}
	if f.Progress != nil {
		set += ", progress = ?"
		args = append(args, *f.Progress)
	}
	args = append(args, userID, animeID)

	res, err := r.DB.ExecContext(ctx, `
		UPDATE user_anime_list SET `+set+` WHERE user_id = ? AND anime_id = ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("update watchlist entry: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return nil, nil
	}
	return r.Get(ctx, userID, animeID)
}

func (r *Repo) Delete(ctx context.Context, userID string, animeID int64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM user_anime_list WHERE user_id = ? AND anime_id = ?
	`, userID, animeID)
	if err != nil {
		return false, fmt.Errorf("delete watchlist entry: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.WatchlistEntry, error) {
	var (
		e        models.WatchlistEntry
		status   string
		score    sql.NullFloat64
		progress sql.NullInt64
	)
	if err := row.Scan(&e.UserID, &e.AnimeID, &status, &score, &progress, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan watchlist entry: %w", err)
	}
	e.Status = models.WatchStatus(status)
	if score.Valid {
		v := score.Float64
		e.Score = &v
	}
	if progress.Valid {
		v := int(progress.Int64)
		e.Progress = &v
	}
	return &e, nil
}
