package store

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

const (
	// placeholderUnknown is used by the collection files for missing runtime and genre values.
	placeholderUnknown = "Unknown"
	// placeholderNA is used by the collection files (and OMDb) for missing ratings.
	placeholderNA = "N/A"
)

// Record is one movie of the collection, as found in the backing JSON file.
// Decoding is tolerant: numbers are accepted where strings are expected,
// and cast/genre lists can be comma separated strings or arrays.
type Record struct {
	ID           string `json:"id,omitempty"`
	Title        string `json:"title"`
	Poster       string `json:"poster,omitempty"`
	Background   string `json:"background,omitempty"`
	Trailer      string `json:"trailer,omitempty"`
	Year         Text   `json:"year,omitempty"`
	Runtime      Text   `json:"runtime,omitempty"`
	IMDbRating   Text   `json:"imdb_rating,omitempty"`
	Genre        List   `json:"genre,omitempty"`
	Cast         List   `json:"cast,omitempty"`
	Director     Text   `json:"director,omitempty"`
	Country      Text   `json:"country,omitempty"`
	Overview     string `json:"overview,omitempty"`
	Description  string `json:"description,omitempty"`
	CriterionURL string `json:"criterion_url,omitempty"`
}

// Key returns the identifier the record is served under: its ID, or the title slug if it has none.
func (r Record) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Slug()
}

// Slug returns the slug of the record's title.
func (r Record) Slug() string {
	return Slugify(r.Title)
}

var imdbIDRegex = regexp.MustCompile(`^tt\d+$`)

// HasIMDbID reports whether the record's ID is an IMDb ID like "tt0050083".
func (r Record) HasIMDbID() bool {
	return imdbIDRegex.MatchString(r.ID)
}

// YearValue returns the release year, or 0 if it's missing or unparseable.
func (r Record) YearValue() int {
	return leadingInt(string(r.Year))
}

// RuntimeMinutes returns the runtime in minutes, or 0 if it's missing, "Unknown" or unparseable.
func (r Record) RuntimeMinutes() int {
	return leadingInt(string(r.Runtime))
}

// Rating returns the IMDb rating. The second return value is false for missing, "N/A" or unparseable ratings.
func (r Record) Rating() (float64, bool) {
	return leadingFloat(string(r.IMDbRating))
}

// RatingValue returns the IMDb rating, or 0 when there is none.
func (r Record) RatingValue() float64 {
	rating, _ := r.Rating()
	return rating
}

// Genres returns the genre tokens without the "Unknown" placeholder.
func (r Record) Genres() []string {
	var genres []string
	for _, genre := range r.Genre {
		if isPlaceholder(genre) {
			continue
		}
		genres = append(genres, genre)
	}
	return genres
}

// Synopsis returns the overview, falling back to the description.
func (r Record) Synopsis() string {
	if s := strings.TrimSpace(r.Overview); s != "" {
		return s
	}
	return strings.TrimSpace(r.Description)
}

// Slugify lower-cases the title and replaces runs of whitespace with a single hyphen.
func Slugify(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), "-")
}

// Text is a string that can also be decoded from a JSON number, e.g. `"year": 1959`.
// Any other JSON value (bool, object, array) decodes to the empty string.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*t = ""
	if len(data) == 0 {
		return nil
	}
	switch {
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(strings.TrimSpace(s))
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*t = Text(n.String())
	}
	return nil
}

// List is a list of names that can be decoded from a JSON array or from a comma separated string
// like "Toshiro Mifune, Takashi Shimura". Array items that aren't strings or numbers are skipped.
type List []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *List) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []Text
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		var result List
		for _, item := range items {
			if item != "" {
				result = append(result, string(item))
			}
		}
		*l = result
		return nil
	}

	var s Text
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	*l = SplitList(string(s))
	return nil
}

// SplitList splits a comma separated string into its trimmed, non-empty elements.
func SplitList(s string) List {
	var result List
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}

func isPlaceholder(s string) bool {
	return strings.EqualFold(s, placeholderUnknown) || strings.EqualFold(s, placeholderNA)
}

var (
	leadingIntRegex   = regexp.MustCompile(`^[-+]?\d+`)
	leadingFloatRegex = regexp.MustCompile(`^[-+]?(\d+(\.\d*)?|\.\d+)`)
)

// leadingInt parses the integer prefix of s, so "132 min" is 132. Anything else is 0.
func leadingInt(s string) int {
	match := leadingIntRegex.FindString(strings.TrimSpace(s))
	if match == "" {
		return 0
	}
	i, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return i
}

// leadingFloat parses the decimal prefix of s, so "8.1/10" is 8.1.
func leadingFloat(s string) (float64, bool) {
	match := leadingFloatRegex.FindString(strings.TrimSpace(s))
	if match == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
