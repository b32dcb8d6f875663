package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xybydy/stremio-criterion/pkg/store"
)

const listPage = `<html><body><table>
<tr class="gridFilm" data-href="https://www.criterion.com/films/27871-12-angry-men">
	<td class="g-img"><img src="https://s3.amazonaws.com/criterion-production/films/12-angry-men.jpg"></td>
	<td class="g-title"><p>12 Angry Men</p></td>
	<td class="g-director">Sidney Lumet</td>
	<td class="g-country">United States,</td>
	<td class="g-year">1957</td>
</tr>
<tr class="gridFilm">
	<td class="g-img"><img src="/images/pather.jpg"></td>
	<td class="g-title"><a href="/films/pather-panchali">  Pather
		Panchali </a></td>
	<td class="g-director">Satyajit Ray</td>
	<td class="g-country">India</td>
	<td class="g-year">1955</td>
</tr>
<tr class="gridFilm">
	<td class="g-img"><img src="/images/empty.jpg"></td>
	<td class="g-title">  </td>
</tr>
<tr class="other">
	<td class="g-title">Not a film</td>
</tr>
</table></body></html>`

func TestParseList(t *testing.T) {
	records, err := ParseList(strings.NewReader(listPage), "https://www.criterion.com/shop/browse/list")
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, store.Record{
		Title:        "12 Angry Men",
		Poster:       "https://s3.amazonaws.com/criterion-production/films/12-angry-men.jpg",
		Year:         "1957",
		Director:     "Sidney Lumet",
		Country:      "United States",
		CriterionURL: "https://www.criterion.com/films/27871-12-angry-men",
	}, records[0])

	require.Equal(t, "Pather Panchali", records[1].Title)
	require.Equal(t, "https://www.criterion.com/images/pather.jpg", records[1].Poster)
	require.Equal(t, "https://www.criterion.com/films/pather-panchali", records[1].CriterionURL)
	require.Equal(t, "pather-panchali", records[1].Key())
}

func TestParseListWithoutBaseURL(t *testing.T) {
	records, err := ParseList(strings.NewReader(listPage), "")
	require.NoError(t, err)
	require.Equal(t, "/images/pather.jpg", records[1].Poster)

	records, err = ParseList(strings.NewReader("<html></html>"), "")
	require.NoError(t, err)
	require.Empty(t, records)
}

// newOMDbServer serves OMDb-like responses for "12 Angry Men" and counts requests.
func newOMDbServer(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		query := r.URL.Query()
		switch {
		case query.Get("apikey") != "secret":
			_, _ = w.Write([]byte(`{"Response": "False", "Error": "Invalid API key!"}`))
		case query.Get("t") == "12 Angry Men":
			_, _ = w.Write([]byte(`{
				"Title": "12 Angry Men", "Year": "1957", "Runtime": "96 min", "Genre": "Crime, Drama",
				"Director": "Sidney Lumet", "Actors": "Henry Fonda, Lee J. Cobb, Martin Balsam",
				"Plot": "The jury in a New York City murder trial is frustrated by a single member.",
				"Country": "United States", "imdbRating": "9.0", "imdbID": "tt0050083", "Response": "True"
			}`))
		case query.Get("t") == "Broken":
			http.Error(w, "oops", http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte(`{"Response": "False", "Error": "Movie not found!"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOMDbLookup(t *testing.T) {
	var requests atomic.Int32
	srv := newOMDbServer(t, &requests)
	ctx := context.Background()

	client, err := NewOMDbClient("secret", srv.URL, srv.Client())
	require.NoError(t, err)

	movie, err := client.Lookup(ctx, "12 Angry Men", "1957")
	require.NoError(t, err)
	require.Equal(t, "tt0050083", movie.IMDbID)
	require.Equal(t, "9.0", movie.IMDbRating)

	// Cached
	_, err = client.Lookup(ctx, "12 angry men", "1957")
	require.NoError(t, err)
	require.EqualValues(t, 1, requests.Load())

	_, err = client.Lookup(ctx, "Unknown Film", "")
	require.ErrorIs(t, err, ErrMovieNotFound)
	_, err = client.Lookup(ctx, "Unknown Film", "")
	require.ErrorIs(t, err, ErrMovieNotFound)
	require.EqualValues(t, 2, requests.Load())

	_, err = client.Lookup(ctx, "Broken", "")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrMovieNotFound)

	invalid, err := NewOMDbClient("wrong", srv.URL, srv.Client())
	require.NoError(t, err)
	_, err = invalid.Lookup(ctx, "12 Angry Men", "")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrMovieNotFound)

	_, err = NewOMDbClient("", srv.URL, nil)
	require.Error(t, err)
}

func TestRun(t *testing.T) {
	var omdbRequests atomic.Int32
	omdbSrv := newOMDbServer(t, &omdbRequests)
	listSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/list" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(listPage))
	}))
	defer listSrv.Close()

	omdb, err := NewOMDbClient("secret", omdbSrv.URL, omdbSrv.Client())
	require.NoError(t, err)
	s := New(listSrv.Client(), omdb, Options{Concurrency: 2}, zap.NewNop())

	records, err := s.Run(context.Background(), listSrv.URL+"/list")
	require.NoError(t, err)
	require.Len(t, records, 2)

	angryMen := records[0]
	require.Equal(t, "tt0050083", angryMen.ID)
	require.Equal(t, store.List{"Henry Fonda", "Lee J. Cobb", "Martin Balsam"}, angryMen.Cast)
	require.Equal(t, store.List{"Crime", "Drama"}, angryMen.Genre)
	require.Equal(t, store.Text("96 min"), angryMen.Runtime)
	require.Equal(t, store.Text("United States"), angryMen.Country)
	require.NotEmpty(t, angryMen.Overview)

	// Not on OMDb, so it keeps its slug key
	require.Empty(t, records[1].ID)
	require.Equal(t, "pather-panchali", records[1].Key())

	_, err = s.Run(context.Background(), listSrv.URL+"/missing")
	require.Error(t, err)
}

func TestRunWithoutOMDb(t *testing.T) {
	listSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(listPage))
	}))
	defer listSrv.Close()

	records, err := New(nil, nil, Options{}, nil).Run(context.Background(), listSrv.URL)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "12-angry-men", records[0].Key())
}

func TestApplyOMDbIgnoresPlaceholders(t *testing.T) {
	r := store.Record{Title: "Obscure", Year: "1971"}
	applyOMDb(&r, OMDbMovie{IMDbID: "tt0067000", Year: "1972", Actors: "N/A", Genre: "N/A", IMDbRating: "N/A", Plot: "N/A", Director: "Someone"})
	require.Equal(t, "tt0067000", r.ID)
	require.Equal(t, store.Text("1971"), r.Year)
	require.Empty(t, r.Cast)
	require.Empty(t, r.Genre)
	require.Empty(t, r.IMDbRating)
	require.Empty(t, r.Overview)
	require.Equal(t, store.Text("Someone"), r.Director)
}

func TestDedupe(t *testing.T) {
	records := dedupe([]store.Record{
		{ID: "tt1", Title: "A"},
		{ID: "tt1", Title: "A (restored)"},
		{Title: "B"},
	}, zap.NewNop())
	require.Len(t, records, 2)
	require.Equal(t, "A", records[0].Title)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "criterion_movies.json")
	records := []store.Record{
		{ID: "tt0050083", Title: "12 Angry Men", Year: "1957", Cast: store.List{"Henry Fonda"}},
		{Title: "Pather Panchali"},
	}
	require.NoError(t, WriteFile(path, records))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	parsed, err := store.Parse(data, nil)
	require.NoError(t, err)
	require.Equal(t, records, parsed)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	var empty []store.Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &empty))
	require.NotNil(t, empty)
	require.Empty(t, empty)
}
