package events

import "time"

// Event types broadcast to connected clients.
const (
	TypeSyncQueued      = "sync.queued"
	TypeSyncDone        = "sync.done"
	TypeSyncFailed      = "sync.failed"
	TypeWatchlistUpdate = "watchlist.update"
	TypeWatchlistDelete = "watchlist.delete"
)

// SyncEvent reports a sync-job lifecycle transition.
type SyncEvent struct {
	Type  string    `json:"type"`
	JobID string    `json:"job_id"`
	Kind  string    `json:"kind"`
	MALID int64     `json:"mal_id,omitempty"`
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at"`
}

// WatchlistEvent reports a change to a user's anime list.
type WatchlistEvent struct {
	Type    string    `json:"type"`
	UserID  string    `json:"user_id"`
	AnimeID int64     `json:"anime_id"`
	Status  string    `json:"status,omitempty"`
	At      time.Time `json:"at"`
}
