package types

// MetaPreviewItem represents a meta preview item and is meant to be used within catalog responses.
// See https://github.com/Stremio/stremio-addon-sdk/blob/f6f1f2a8b627b9d4f2c62b003b251d98adadbebe/docs/api/responses/meta.md#meta-preview-object
type MetaPreviewItem struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Poster string `json:"poster"` // URL

	// Optional
	PosterShape string `json:"posterShape,omitempty"`
	Background  string `json:"background,omitempty"` // URL
	Logo        string `json:"logo,omitempty"`       // URL

	// Optional, used for the "Discover" page sidebar
	Genres      []string       `json:"genres,omitempty"` // Will be replaced by Links at some point
	IMDbRating  string         `json:"imdbRating,omitempty"`
	ReleaseInfo string         `json:"releaseInfo,omitempty"` // E.g. "2000" for movies
	Runtime     string         `json:"runtime,omitempty"`
	Links       []MetaLinkItem `json:"links,omitempty"` // Not fully supported by Stremio yet!
	Description string         `json:"description,omitempty"`
}

// MetaItem represents a meta item and is meant to be used when info for a specific item was requested.
// See https://github.com/Stremio/stremio-addon-sdk/blob/f6f1f2a8b627b9d4f2c62b003b251d98adadbebe/docs/api/responses/meta.md
type MetaItem struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`

	// Optional
	Genres      []string       `json:"genres,omitempty"` // Will be replaced by Links at some point
	Poster      string         `json:"poster,omitempty"` // URL
	PosterShape string         `json:"posterShape,omitempty"`
	Background  string         `json:"background,omitempty"` // URL
	Logo        string         `json:"logo,omitempty"`       // URL
	Description string         `json:"description,omitempty"`
	ReleaseInfo string         `json:"releaseInfo,omitempty"` // E.g. "2000" for movies
	Director    []string       `json:"director,omitempty"`    // Will be replaced by Links at some point
	Cast        []string       `json:"cast,omitempty"`        // Will be replaced by Links at some point
	IMDbRating  string         `json:"imdbRating,omitempty"`
	Trailers    []StreamItem   `json:"trailers,omitempty"`
	Links       []MetaLinkItem `json:"links,omitempty"` // For genres, director, cast and the rating. Not fully supported by Stremio yet!
	Runtime     string         `json:"runtime,omitempty"`
	Country     string         `json:"country,omitempty"`
	Website     string         `json:"website,omitempty"` // URL
}

// MetaLinkItem links to a page within Stremio.
// It will at some point replace the usage of `genres`, `director` and `cast`.
// Note: It's not fully supported by Stremio yet (not fully on PC and not at all on Android)!
type MetaLinkItem struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	URL      string `json:"url"` // URL. Can be "Meta Links" (see https://github.com/Stremio/stremio-addon-sdk/blob/f6f1f2a8b627b9d4f2c62b003b251d98adadbebe/docs/api/responses/meta.links.md)
}
