package genre

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anisync/pkg/database"
	"anisync/pkg/models"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func seedAnime(t *testing.T, db *sql.DB, malID int64, title string) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO anime (mal_id, title) VALUES (?, ?)`, malID, title)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func names(genres []models.Genre) []string {
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		out = append(out, g.Name)
	}
	return out
}

func TestCanonicalName(t *testing.T) {
	assert.Equal(t, "Action", CanonicalName("  action "))
	assert.Equal(t, "Slice Of Life", CanonicalName("slice of life"))
	assert.Equal(t, "", CanonicalName("   "))
}

func TestReconcile_SetExactness(t *testing.T) {
	db := testDB(t)
	repo := NewRepo(db)
	ctx := context.Background()
	animeID := seedAnime(t, db, 1, "Cowboy Bebop")

	first, err := repo.Reconcile(ctx, animeID, []Ref{
		{Name: "Action", MALID: 1},
		{Name: "Comedy", MALID: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Action", "Comedy"}, names(first))

	var comedyID int64
	for _, g := range first {
		if g.Name == "Comedy" {
			comedyID = g.ID
		}
	}

	second, err := repo.Reconcile(ctx, animeID, []Ref{
		{Name: "Comedy", MALID: 4},
		{Name: "Drama", MALID: 8},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Comedy", "Drama"}, names(second))

	// Comedy kept its row; Action's association is gone.
	stored, err := repo.ListByAnime(ctx, animeID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Comedy", "Drama"}, names(stored))
	for _, g := range stored {
		if g.Name == "Comedy" {
			assert.Equal(t, comedyID, g.ID)
		}
	}

	// Action's genre row itself survives for other items.
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM genre WHERE name = 'Action'`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestReconcile_Idempotent(t *testing.T) {
	db := testDB(t)
	repo := NewRepo(db)
	ctx := context.Background()
	animeID := seedAnime(t, db, 1, "Cowboy Bebop")

	refs := []Ref{{Name: "Action", MALID: 1}, {Name: "Sci-Fi", MALID: 24}}

	first, err := repo.Reconcile(ctx, animeID, refs)
	require.NoError(t, err)
	second, err := repo.Reconcile(ctx, animeID, refs)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var total int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM anime_genres WHERE anime_id = ?`, animeID).Scan(&total))
	assert.Equal(t, 2, total)
}

func TestReconcile_RenameByExternalID(t *testing.T) {
	db := testDB(t)
	repo := NewRepo(db)
	ctx := context.Background()
	animeID := seedAnime(t, db, 1, "Cowboy Bebop")

	first, err := repo.Reconcile(ctx, animeID, []Ref{{Name: "Sci Fi", MALID: 24}})
	require.NoError(t, err)
	require.Len(t, first, 1)

	// upstream renamed the tag; the same external id must not duplicate
	second, err := repo.Reconcile(ctx, animeID, []Ref{{Name: "Sci-Fi", MALID: 24}})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, "Sci-Fi", second[0].Name)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM genre`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestReconcile_BackfillExternalID(t *testing.T) {
	db := testDB(t)
	repo := NewRepo(db)
	ctx := context.Background()
	animeID := seedAnime(t, db, 1, "Cowboy Bebop")

	first, err := repo.Reconcile(ctx, animeID, []Ref{{Name: "Comedy"}})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Zero(t, first[0].MALID)

	second, err := repo.Reconcile(ctx, animeID, []Ref{{Name: "comedy", MALID: 4}})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID, "name match must reuse the row")
	assert.Equal(t, int64(4), second[0].MALID, "missing external id gets backfilled")
}

func TestReconcile_DedupesAcrossCategories(t *testing.T) {
	db := testDB(t)
	repo := NewRepo(db)
	ctx := context.Background()
	animeID := seedAnime(t, db, 1, "Cowboy Bebop")

	// the normalizer preserves genre/theme overlap; the reconciler collapses it
	genres, err := repo.Reconcile(ctx, animeID, []Ref{
		{Name: "Comedy", MALID: 4},
		{Name: "Comedy", MALID: 4},
		{Name: " comedy ", MALID: 4},
	})
	require.NoError(t, err)
	assert.Len(t, genres, 1)

	var total int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM anime_genres WHERE anime_id = ?`, animeID).Scan(&total))
	assert.Equal(t, 1, total)
}

func TestReconcile_EmptyTargetClears(t *testing.T) {
	db := testDB(t)
	repo := NewRepo(db)
	ctx := context.Background()
	animeID := seedAnime(t, db, 1, "Cowboy Bebop")

	_, err := repo.Reconcile(ctx, animeID, []Ref{{Name: "Action", MALID: 1}})
	require.NoError(t, err)

	cleared, err := repo.Reconcile(ctx, animeID, nil)
	require.NoError(t, err)
	assert.Empty(t, cleared)

	var total int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM anime_genres WHERE anime_id = ?`, animeID).Scan(&total))
	assert.Equal(t, 0, total)
}
