package genre

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"anisync/pkg/models"
)

// ErrConflict means a reconciliation transaction lost a unique-constraint race
// with a concurrent sync. Retrying the reconciliation resolves it.
var ErrConflict = errors.New("genre: reconciliation conflict")

// Ref is one tag reference extracted from an upstream payload: display name
// plus the upstream id when known (0 when absent).
type Ref struct {
	Name  string
	MALID int64
}

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

var titleCaser = cases.Title(language.Und)

// CanonicalName trims and title-cases a genre name. Identity comparison is
// case-insensitive on the trimmed form; this is the stored representation.
func CanonicalName(name string) string {
	return titleCaser.String(strings.TrimSpace(name))
}

// Reconcile makes the stored association set for animeID exactly equal to the
// resolved target set of refs. The whole operation runs in one transaction; a
// lost constraint race is retried once before surfacing ErrConflict.
func (r *Repo) Reconcile(ctx context.Context, animeID int64, refs []Ref) ([]models.Genre, error) {
	genres, err := r.reconcileOnce(ctx, animeID, refs)
	if errors.Is(err, ErrConflict) {
		genres, err = r.reconcileOnce(ctx, animeID, refs)
	}
	return genres, err
}

func (r *Repo) reconcileOnce(ctx context.Context, animeID int64, refs []Ref) ([]models.Genre, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reconcile: %w", err)
	}
	defer tx.Rollback()

	// Resolve refs to genre rows, deduplicating across genres/themes overlap.
	target := make([]models.Genre, 0, len(refs))
	seen := make(map[int64]struct{}, len(refs))
	for _, ref := range refs {
		name := CanonicalName(ref.Name)
		if name == "" {
			continue
		}
		g, err := resolve(ctx, tx, name, ref.MALID)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[g.ID]; dup {
			continue
		}
		seen[g.ID] = struct{}{}
		target = append(target, g)
	}

	current, err := associationIDs(ctx, tx, animeID)
	if err != nil {
		return nil, err
	}

	// Remove rows outside the target set; rows in both sets stay untouched.
	for id := range current {
		if _, keep := seen[id]; keep {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM anime_genres WHERE anime_id = ? AND genre_id = ?
		`, animeID, id); err != nil {
			return nil, fmt.Errorf("remove association: %w", err)
		}
	}

	for _, g := range target {
		if _, have := current[g.ID]; have {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO anime_genres (anime_id, genre_id) VALUES (?, ?)
		`, animeID, g.ID); err != nil {
			return nil, wrapConflict("insert association", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapConflict("commit reconcile", err)
	}

	sort.Slice(target, func(i, j int) bool { return target[i].Name < target[j].Name })
	return target, nil
}

// resolve finds or creates the genre row for one ref. Identity order: upstream
// id wins (rename updates the stored name), then normalized name (backfills a
// missing upstream id), else a new row.
func resolve(ctx context.Context, tx *sql.Tx, name string, malID int64) (models.Genre, error) {
	var g models.Genre
	var storedMAL sql.NullInt64

	if malID != 0 {
		err := tx.QueryRowContext(ctx, `
			SELECT id, name, mal_id FROM genre WHERE mal_id = ?
		`, malID).Scan(&g.ID, &g.Name, &storedMAL)
		switch {
		case err == nil:
			g.MALID = storedMAL.Int64
			if g.Name != name {
				if _, err := tx.ExecContext(ctx, `
					UPDATE genre SET name = ? WHERE id = ?
				`, name, g.ID); err != nil {
					return models.Genre{}, wrapConflict("rename genre", err)
				}
				g.Name = name
			}
			return g, nil
		case err != sql.ErrNoRows:
			return models.Genre{}, fmt.Errorf("lookup genre by mal_id: %w", err)
		}
	}

	err := tx.QueryRowContext(ctx, `
		SELECT id, name, mal_id FROM genre WHERE LOWER(name) = LOWER(?)
	`, name).Scan(&g.ID, &g.Name, &storedMAL)
	switch {
	case err == nil:
		g.MALID = storedMAL.Int64
		if malID != 0 && !storedMAL.Valid {
			if _, err := tx.ExecContext(ctx, `
				UPDATE genre SET mal_id = ? WHERE id = ?
			`, malID, g.ID); err != nil {
				return models.Genre{}, wrapConflict("backfill genre mal_id", err)
			}
			g.MALID = malID
		}
		return g, nil
	case err != sql.ErrNoRows:
		return models.Genre{}, fmt.Errorf("lookup genre by name: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO genre (name, mal_id) VALUES (?, NULLIF(?, 0))
	`, name, malID)
	if err != nil {
		return models.Genre{}, wrapConflict("create genre", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Genre{}, fmt.Errorf("genre insert id: %w", err)
	}
	return models.Genre{ID: id, Name: name, MALID: malID}, nil
}

func associationIDs(ctx context.Context, tx *sql.Tx, animeID int64) (map[int64]struct{}, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT genre_id FROM anime_genres WHERE anime_id = ?
	`, animeID)
	if err != nil {
		return nil, fmt.Errorf("list associations: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan association: %w", err)
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// ListByAnime returns the reconciled genre set for one anime, name-ordered.
func (r *Repo) ListByAnime(ctx context.Context, animeID int64) ([]models.Genre, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT g.id, g.name, COALESCE(g.mal_id, 0)
		FROM genre g
		JOIN anime_genres ag ON ag.genre_id = g.id
		WHERE ag.anime_id = ?
		ORDER BY g.name
	`, animeID)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	defer rows.Close()

	var out []models.Genre
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.Name, &g.MALID); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// wrapConflict maps SQLite constraint violations onto ErrConflict so the
// reconciler can retry; anything else passes through wrapped.
func wrapConflict(op string, err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
