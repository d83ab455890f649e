package models

import "time"

// AnimeStatus is the canonical airing-status vocabulary. Upstream strings are
// mapped into these values by the normalizer; anything unrecognized stays "".
type AnimeStatus string

const (
	StatusAiring   AnimeStatus = "airing"
	StatusFinished AnimeStatus = "finished"
	StatusUpcoming AnimeStatus = "upcoming"
)

// AnimeSeason is the canonical broadcast-season vocabulary.
type AnimeSeason string

const (
	SeasonWinter AnimeSeason = "winter"
	SeasonSpring AnimeSeason = "spring"
	SeasonSummer AnimeSeason = "summer"
	SeasonFall   AnimeSeason = "fall"
)

// Anime is a catalog row. MALID is the stable upstream identity; ID is ours.
type Anime struct {
	ID            int64       `json:"id"`
	MALID         int64       `json:"mal_id"`
	Title         string      `json:"title"`
	TitleEnglish  string      `json:"title_english,omitempty"`
	TitleJapanese string      `json:"title_japanese,omitempty"`
	Synopsis      string      `json:"synopsis,omitempty"`
	Score         float64     `json:"score,omitempty"`
	Episodes      int         `json:"episodes,omitempty"`
	Status        AnimeStatus `json:"status,omitempty"`
	Season        AnimeSeason `json:"season,omitempty"`
	Year          int         `json:"year,omitempty"`
	ImageURL      string      `json:"image_url,omitempty"`
	Genres        []Genre     `json:"genres,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// AnimeFields is the synchronized subset of an anime row: everything upstream
// is authoritative for. A sync overwrites all of these, never merges.
type AnimeFields struct {
	MALID         int64
	Title         string
	TitleEnglish  string
	TitleJapanese string
	Synopsis      string
	Score         float64
	Episodes      int
	Status        AnimeStatus
	Season        AnimeSeason
	Year          int
	ImageURL      string
}
