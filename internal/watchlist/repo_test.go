package watchlist

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
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

func seedUser(t *testing.T, db *sql.DB) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(`INSERT INTO users (id, username, email, password_hash) VALUES (?, ?, ?, 'x')`,
		id, "user-"+id[:8], id[:8]+"@example.com")
	require.NoError(t, err)
	return id
}

func seedAnime(t *testing.T, db *sql.DB, malID int64, title string) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO anime (mal_id, title) VALUES (?, ?)`, malID, title)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func ptr[T any](v T) *T { return &v }

func TestAddAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewRepo(db)
	ctx := context.Background()
	userID := seedUser(t, db)
	animeID := seedAnime(t, db, 1, "Cowboy Bebop")

	entry, err := repo.Add(ctx, models.WatchlistEntry{
		UserID:  userID,
		AnimeID: animeID,
		Status:  models.WatchWatching,
		Score:   ptr(8.5),
	})
	require.NoError(t, err)
	assert.Equal(t, models.WatchWatching, entry.Status)
	require.NotNil(t, entry.Score)
	assert.Equal(t, 8.5, *entry.Score)
	assert.Nil(t, entry.Progress)

	got, err := repo.Get(ctx, userID, animeID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.AnimeID, got.AnimeID)
}

func TestAdd_Duplicate(t *testing.T) {
	db := testDB(t)
	repo := NewRepo(db)
	ctx := context.Background()
	userID := seedUser(t, db)
	animeID := seedAnime(t, db, 1, "Cowboy Bebop")

	_, err := repo.Add(ctx, models.WatchlistEntry{UserID: userID, AnimeID: animeID, Status: models.WatchPlanToWatch})
	require.NoError(t, err)

	_, err = repo.Add(ctx, models.WatchlistEntry{UserID: userID, AnimeID: animeID, Status: models.WatchWatching})
	assert.ErrorIs(t, err, ErrExists)

	// a second user can list the same anime
	otherID := seedUser(t, db)
	_, err = repo.Add(ctx, models.WatchlistEntry{UserID: otherID, AnimeID: animeID, Status: models.WatchPlanToWatch})
	assert.NoError(t, err)
}

func TestGet_Missing(t *testing.T) {
	db := testDB(t)
	repo := NewRepo(db)
	userID := seedUser(t, db)

	got, err := repo.Get(context.Background(), userID, 42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestList_FiltersByStatus(t *testing.T) {
	db := testDB(t)
	repo := NewRepo(db)
	ctx := context.Background()
	userID := seedUser(t, db)

	a := seedAnime(t, db, 1, "Cowboy Bebop")
	b := seedAnime(t, db, 20, "Naruto")
	c := seedAnime(t, db, 5114, "FMA:B")

	for animeID, status := range map[int64]models.WatchStatus{
		a: models.WatchCompleted,
		b: models.WatchWatching,
		c: models.WatchCompleted,
	} {
		_, err := repo.Add(ctx, models.WatchlistEntry{UserID: userID, AnimeID: animeID, Status: status})
		require.NoError(t, err)
	}

	all, err := repo.List(ctx, userID, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	completed, err := repo.List(ctx, userID, models.WatchCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 2)
	for _, e := range completed {
		assert.Equal(t, models.WatchCompleted, e.Status)
	}
}

func TestUpdate_PatchesOnlyProvidedFields(t *testing.T) {
	db := testDB(t)
	repo := NewRepo(db)
	ctx := context.Background()
	userID := seedUser(t, db)
	animeID := seedAnime(t, db, 1, "Cowboy Bebop")

	_, err := repo.Add(ctx, models.WatchlistEntry{
		UserID:   userID,
		AnimeID:  animeID,
		Status:   models.WatchWatching,
		Score:    ptr(7.0),
		Progress: ptr(5),
	})
	require.NoError(t, err)

	updated, err := repo.Update(ctx, userID, animeID, UpdateFields{Progress: ptr(12)})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, models.WatchWatching, updated.Status, "untouched field keeps its value")
	require.NotNil(t, updated.Score)
	assert.Equal(t, 7.0, *updated.Score)
	require.NotNil(t, updated.Progress)
	assert.Equal(t, 12, *updated.Progress)
}

func TestUpdate_MissingEntry(t *testing.T) {
	db := testDB(t)
	repo := NewRepo(db)
	userID := seedUser(t, db)

	updated, err := repo.Update(context.Background(), userID, 42, UpdateFields{Progress: ptr(1)})
	require.NoError(t, err)
	assert.Nil(t, updated)
}

func TestDelete(t *testing.T) {
	db := testDB(t)
	repo := NewRepo(db)
	ctx := context.Background()
	userID := seedUser(t, db)
	animeID := seedAnime(t, db, 1, "Cowboy Bebop")

	_, err := repo.Add(ctx, models.WatchlistEntry{UserID: userID, AnimeID: animeID, Status: models.WatchDropped})
	require.NoError(t, err)

	ok, err := repo.Delete(ctx, userID, animeID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Delete(ctx, userID, animeID)
	require.NoError(t, err)
	assert.False(t, ok, "second delete finds nothing")
}
