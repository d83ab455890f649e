package anime

import (
	"context"
	"database/sql"
	"fmt"

	"anisync/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

type ListQuery struct {
	MinScore float64
	Limit    int
	Offset   int
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const animeColumns = `
	id, mal_id, title, title_english, title_japanese, synopsis,
	score, episodes, status, season, year, image_url, created_at, updated_at
`

func (r *Repo) GetByID(ctx context.Context, id int64) (*models.Anime, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+animeColumns+` FROM anime WHERE id = ?
	`, id)
	return scanAnime(row)
}

func (r *Repo) GetByMALID(ctx context.Context, malID int64) (*models.Anime, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+animeColumns+` FROM anime WHERE mal_id = ?
	`, malID)
	return scanAnime(row)
}

// Create inserts a new row for a previously-unseen MAL id.
func (r *Repo) Create(ctx context.Context, f models.AnimeFields) (*models.Anime, error) {
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO anime (
			mal_id, title, title_english, title_japanese, synopsis,
			score, episodes, status, season, year, image_url
		) VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''),
			NULLIF(?, 0.0), NULLIF(?, 0), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, 0), NULLIF(?, ''))
	`, f.MALID, f.Title, f.TitleEnglish, f.TitleJapanese, f.Synopsis,
		f.Score, f.Episodes, string(f.Status), string(f.Season), f.Year, f.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("create anime: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("anime insert id: %w", err)
	}
	return r.GetByID(ctx, id)
}

// Update overwrites every synchronized field in place; upstream is
// authoritative, so this is never a merge. The surrogate key and mal_id stay.
func (r *Repo) Update(ctx context.Context, id int64, f models.AnimeFields) (*models.Anime, error) {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE anime SET
			title = ?,
			title_english = NULLIF(?, ''),
			title_japanese = NULLIF(?, ''),
			synopsis = NULLIF(?, ''),
			score = NULLIF(?, 0.0),
			episodes = NULLIF(?, 0),
			status = NULLIF(?, ''),
			season = NULLIF(?, ''),
			year = NULLIF(?, 0),
			image_url = NULLIF(?, ''),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, f.Title, f.TitleEnglish, f.TitleJapanese, f.Synopsis,
		f.Score, f.Episodes, string(f.Status), string(f.Season), f.Year, f.ImageURL, id)
	if err != nil {
		return nil, fmt.Errorf("update anime: %w", err)
	}
	return r.GetByID(ctx, id)
}

// List returns stored anime ordered by score descending.
func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Anime, error) {
	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+animeColumns+` FROM anime
		WHERE COALESCE(score, 0) >= ?
		ORDER BY score DESC
		LIMIT ? OFFSET ?
	`, q.MinScore, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list anime: %w", err)
	}
	defer rows.Close()
	return collectAnime(rows, limit)
}

// Recommendations returns anime sharing the user's three most-listed genres,
// excluding titles already on the list, best-scored first.
func (r *Repo) Recommendations(ctx context.Context, userID string, limit int) ([]models.Anime, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+animeColumns+` FROM anime
		WHERE id IN (
			SELECT ag.anime_id FROM anime_genres ag
			WHERE ag.genre_id IN (
				SELECT ag2.genre_id
				FROM user_anime_list ual
				JOIN anime_genres ag2 ON ag2.anime_id = ual.anime_id
				WHERE ual.user_id = ?
				GROUP BY ag2.genre_id
				ORDER BY COUNT(*) DESC
				LIMIT 3
			)
		)
		AND id NOT IN (SELECT anime_id FROM user_anime_list WHERE user_id = ?)
		ORDER BY score DESC
		LIMIT ?
	`, userID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recommendations query: %w", err)
	}
	defer rows.Close()
	return collectAnime(rows, limit)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnime(row rowScanner) (*models.Anime, error) {
	var (
		a             models.Anime
		titleEnglish  sql.NullString
		titleJapanese sql.NullString
		synopsis      sql.NullString
		score         sql.NullFloat64
		episodes      sql.NullInt64
		status        sql.NullString
		season        sql.NullString
		year          sql.NullInt64
		imageURL      sql.NullString
	)

	err := row.Scan(
		&a.ID, &a.MALID, &a.Title, &titleEnglish, &titleJapanese, &synopsis,
		&score, &episodes, &status, &season, &year, &imageURL,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan anime: %w", err)
	}

	a.TitleEnglish = titleEnglish.String
	a.TitleJapanese = titleJapanese.String
	a.Synopsis = synopsis.String
	a.Score = score.Float64
	if episodes.Valid {
		a.Episodes = int(episodes.Int64)
	}
	a.Status = models.AnimeStatus(status.String)
	a.Season = models.AnimeSeason(season.String)
	if year.Valid {
		a.Year = int(year.Int64)
	}
	a.ImageURL = imageURL.String
	return &a, nil
}

func collectAnime(rows *sql.Rows, capHint int) ([]models.Anime, error) {
	out := make([]models.Anime, 0, capHint)
	for rows.Next() {
		a, err := scanAnime(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}
