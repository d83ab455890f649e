package main

import (
	"context"
	"flag"
	"log"
	"time"

	"anisync/internal/anime"
	"anisync/internal/genre"
	"anisync/internal/jikan"
	"anisync/pkg/database"
	"anisync/pkg/utils"
)

// One-shot bulk sync: fetch the upstream top-N ranking and synchronize each
// entry into the local store, sequentially, respecting the rate gate.
func main() {
	limit := flag.Int("limit", 25, "number of top-ranked anime to sync")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	syncCfg := utils.LoadSyncConfig()
	client := jikan.NewClient(
		jikan.WithRateLimit(syncCfg.RequestsPerSecond, syncCfg.Burst),
		jikan.WithRetry(syncCfg.MaxAttempts, 2*time.Second, 10*time.Second),
		jikan.WithTimeout(syncCfg.RequestTimeout),
	)

	svc := anime.NewService(anime.NewRepo(db), genre.NewRepo(db), client)

	top, err := client.GetTopAnime(ctx, *limit)
	if err != nil {
		log.Fatalf("fetch top ranking failed: %v", err)
	}
	log.Printf("[syncer] ranking returned %d entries", len(top))

	var synced, failed int
	for _, entry := range top {
		if entry.MALID == 0 {
			continue
		}
		item, err := svc.EnsureSynced(ctx, entry.MALID)
		if err != nil {
			failed++
			log.Printf("[syncer] mal_id %d failed: %v", entry.MALID, err)
			continue
		}
		synced++
		log.Printf("[syncer] synced %q (mal_id %d, %d genres)", item.Title, item.MALID, len(item.Genres))
	}

	log.Printf("[syncer] done: %d synced, %d failed", synced, failed)
}
