package models

// Genre is a tag row. Identity is the MAL id when upstream supplied one,
// otherwise the unique name. Name is stored title-cased.
type Genre struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	MALID int64  `json:"mal_id,omitempty"`
}
