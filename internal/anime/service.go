package anime

import (
	"context"
	"fmt"
	"log"

	"anisync/internal/genre"
	"anisync/internal/jikan"
	"anisync/pkg/models"
)

// Fetcher is the slice of the upstream client the orchestrator needs.
type Fetcher interface {
	GetAnimeByID(ctx context.Context, malID int64) (*jikan.Anime, error)
}

// Service orchestrates one "ensure item X is synchronized" operation:
// fetch, normalize, create-or-overwrite, reconcile the genre set.
type Service struct {
	Repo    *Repo
	Genres  GenreReconciler
	Fetcher Fetcher
}

// GenreReconciler is the tag-set reconciliation the orchestrator delegates to.
type GenreReconciler interface {
	Reconcile(ctx context.Context, animeID int64, refs []genre.Ref) ([]models.Genre, error)
	ListByAnime(ctx context.Context, animeID int64) ([]models.Genre, error)
}

func NewService(repo *Repo, genres GenreReconciler, fetcher Fetcher) *Service {
	return &Service{Repo: repo, Genres: genres, Fetcher: fetcher}
}

// EnsureSynced brings the local row for malID in line with upstream and
// returns it with the reconciled genre set. Idempotent: an unchanged upstream
// payload produces the same stored state and zero net association changes.
//
// Fetch and normalize failures abort before any write. A reconcile failure
// leaves the item row committed with stale genres; the next successful sync
// of the same key converges.
func (s *Service) EnsureSynced(ctx context.Context, malID int64) (*models.Anime, error) {
	existing, err := s.Repo.GetByMALID(ctx, malID)
	if err != nil {
		return nil, err
	}

	raw, err := s.Fetcher.GetAnimeByID(ctx, malID)
	if err != nil {
		return nil, err
	}

	fields, refs, err := Normalize(raw)
	if err != nil {
		return nil, err
	}

	var item *models.Anime
	if existing != nil {
		item, err = s.Repo.Update(ctx, existing.ID, fields)
	} else {
		item, err = s.Repo.Create(ctx, fields)
	}
	if err != nil {
		return nil, err
	}

	genres, err := s.Genres.Reconcile(ctx, item.ID, refs)
	if err != nil {
		log.Printf("[sync] anime %d stored but genres unreconciled: %v", malID, err)
		return nil, fmt.Errorf("reconcile genres for mal_id %d: %w", malID, err)
	}
	item.Genres = genres
	return item, nil
}

// GetOrFetch returns the stored row when present, otherwise syncs it from
// upstream first.
func (s *Service) GetOrFetch(ctx context.Context, malID int64) (*models.Anime, error) {
	existing, err := s.Repo.GetByMALID(ctx, malID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		genres, err := s.Genres.ListByAnime(ctx, existing.ID)
		if err != nil {
			return nil, err
		}
		existing.Genres = genres
		return existing, nil
	}
	return s.EnsureSynced(ctx, malID)
}
