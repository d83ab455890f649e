package anime

import (
	"errors"
	"strings"

	"anisync/internal/genre"
	"anisync/internal/jikan"
	"anisync/pkg/models"
)

// ErrMalformedPayload means upstream returned data missing the required
// identity fields (MAL id, title). Not retryable.
var ErrMalformedPayload = errors.New("anime: malformed upstream payload")

// Upstream vocabulary tables. Unlisted values normalize to the zero value
// rather than failing the sync.
var statusFromUpstream = map[string]models.AnimeStatus{
	"Finished Airing":  models.StatusFinished,
	"Currently Airing": models.StatusAiring,
	"Not yet aired":    models.StatusUpcoming,
}

var seasonFromUpstream = map[string]models.AnimeSeason{
	"winter": models.SeasonWinter,
	"spring": models.SeasonSpring,
	"summer": models.SeasonSummer,
	"fall":   models.SeasonFall,
}

// Normalize maps one upstream payload into canonical anime fields plus the
// flat tag reference list (genres and themes concatenated; duplicates across
// the two categories survive here, the reconciler dedupes). Pure function.
func Normalize(raw *jikan.Anime) (models.AnimeFields, []genre.Ref, error) {
	if raw == nil || raw.MALID == 0 || strings.TrimSpace(raw.Title) == "" {
		return models.AnimeFields{}, nil, ErrMalformedPayload
	}

	fields := models.AnimeFields{
		MALID:         raw.MALID,
		Title:         strings.TrimSpace(raw.Title),
		TitleEnglish:  strings.TrimSpace(raw.TitleEnglish),
		TitleJapanese: strings.TrimSpace(raw.TitleJapanese),
		Synopsis:      raw.Synopsis,
		Score:         raw.Score,
		Episodes:      raw.Episodes,
		Status:        statusFromUpstream[raw.Status],
		Season:        seasonFromUpstream[strings.ToLower(raw.Season)],
		Year:          raw.Year,
		ImageURL:      raw.Images.JPG.ImageURL,
	}

	refs := make([]genre.Ref, 0, len(raw.Genres)+len(raw.Themes))
	for _, g := range raw.Genres {
		refs = append(refs, genre.Ref{Name: g.Name, MALID: g.MALID})
	}
	for _, t := range raw.Themes {
		refs = append(refs, genre.Ref{Name: t.Name, MALID: t.MALID})
	}

	return fields, refs, nil
}
