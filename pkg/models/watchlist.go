package models

import "time"

// WatchStatus is the per-user list status vocabulary.
type WatchStatus string

const (
	WatchWatching    WatchStatus = "watching"
	WatchCompleted   WatchStatus = "completed"
	WatchPlanToWatch WatchStatus = "plan_to_watch"
	WatchDropped     WatchStatus = "dropped"
	WatchOnHold      WatchStatus = "on_hold"
)

// ValidWatchStatus reports whether s is one of the known list statuses.
func ValidWatchStatus(s WatchStatus) bool {
	switch s {
	case WatchWatching, WatchCompleted, WatchPlanToWatch, WatchDropped, WatchOnHold:
		return true
	}
	return false
}

// WatchlistEntry is one row of a user's anime list.
type WatchlistEntry struct {
	UserID    string      `json:"user_id"`
	AnimeID   int64       `json:"anime_id"`
	Status    WatchStatus `json:"status"`
	Score     *float64    `json:"score,omitempty"`
	Progress  *int        `json:"progress,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
