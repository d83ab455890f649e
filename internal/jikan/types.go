package jikan

// Wire schema for the slice of the Jikan v4 API this service consumes.
// Every endpoint wraps its payload in a {"data": ...} envelope.

type envelope[T any] struct {
	Data T `json:"data"`
}

// Ref is an upstream tag reference (genres, themes). MALID may be zero when
// upstream omits it.
type Ref struct {
	MALID int64  `json:"mal_id"`
	Name  string `json:"name"`
}

// Anime is the upstream detail payload. Only the synchronized fields are
// decoded; everything else in the response is ignored.
type Anime struct {
	MALID         int64   `json:"mal_id"`
	Title         string  `json:"title"`
	TitleEnglish  string  `json:"title_english"`
	TitleJapanese string  `json:"title_japanese"`
	Synopsis      string  `json:"synopsis"`
	Score         float64 `json:"score"`
	Episodes      int     `json:"episodes"`
	Status        string  `json:"status"`
	Season        string  `json:"season"`
	Year          int     `json:"year"`
	Images        struct {
		JPG struct {
			ImageURL string `json:"image_url"`
		} `json:"jpg"`
	} `json:"images"`
	Genres []Ref `json:"genres"`
	Themes []Ref `json:"themes"`
}

// SearchQuery holds the supported parameters of the upstream search endpoint.
type SearchQuery struct {
	Q       string
	Page    int
	Limit   int
	Type    string
	Status  string
	Season  string
	OrderBy string
}
