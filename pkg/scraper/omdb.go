package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultOMDbURL is the OMDb API endpoint.
const DefaultOMDbURL = "https://www.omdbapi.com/"

const defaultLookupCacheSize = 1024

// ErrMovieNotFound is returned when OMDb doesn't know a movie.
var ErrMovieNotFound = errors.New("movie not found on OMDb")

// OMDbMovie is the subset of an OMDb title response the scraper uses.
type OMDbMovie struct {
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Runtime    string `json:"Runtime"`
	Genre      string `json:"Genre"`
	Director   string `json:"Director"`
	Actors     string `json:"Actors"`
	Plot       string `json:"Plot"`
	Country    string `json:"Country"`
	IMDbRating string `json:"imdbRating"`
	IMDbID     string `json:"imdbID"`
}

type omdbResponse struct {
	OMDbMovie
	Response string `json:"Response"`
	Error    string `json:"Error"`
}

type lookupResult struct {
	movie OMDbMovie
	found bool
}

// OMDbClient looks up movies by title on OMDb.
// Results, including "not found", are kept in an LRU cache so repeated titles cost one request.
type OMDbClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	cache   *lru.Cache[string, lookupResult]
}

// NewOMDbClient creates an OMDbClient. An empty baseURL means DefaultOMDbURL, a nil client http.DefaultClient.
func NewOMDbClient(apiKey, baseURL string, client *http.Client) (*OMDbClient, error) {
	if apiKey == "" {
		return nil, errors.New("an OMDb API key is required")
	}
	if baseURL == "" {
		baseURL = DefaultOMDbURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	cache, err := lru.New[string, lookupResult](defaultLookupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("couldn't create lookup cache: %w", err)
	}

	return &OMDbClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  client,
		cache:   cache,
	}, nil
}

// Lookup fetches the movie with the given title. The year is optional and narrows the search.
func (c *OMDbClient) Lookup(ctx context.Context, title, year string) (OMDbMovie, error) {
	cacheKey := strings.ToLower(title) + "|" + year
	if cached, ok := c.cache.Get(cacheKey); ok {
		if !cached.found {
			return OMDbMovie{}, fmt.Errorf("%w: %q", ErrMovieNotFound, title)
		}
		return cached.movie, nil
	}

	query := url.Values{
		"apikey": {c.apiKey},
		"t":      {title},
		"type":   {"movie"},
	}
	if year != "" {
		query.Set("y", year)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return OMDbMovie{}, fmt.Errorf("couldn't create request: %w", err)
	}
	res, err := c.client.Do(req)
	if err != nil {
		return OMDbMovie{}, fmt.Errorf("couldn't send request to OMDb: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return OMDbMovie{}, fmt.Errorf("bad HTTP response status from OMDb: %v", res.Status)
	}

	var body omdbResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return OMDbMovie{}, fmt.Errorf("couldn't decode OMDb response: %w", err)
	}
	if body.Response != "True" {
		// Errors like an invalid API key come with the same "False" response, but mustn't be cached.
		if !strings.Contains(strings.ToLower(body.Error), "not found") {
			return OMDbMovie{}, fmt.Errorf("OMDb responded with an error: %v", body.Error)
		}
		c.cache.Add(cacheKey, lookupResult{})
		return OMDbMovie{}, fmt.Errorf("%w: %q", ErrMovieNotFound, title)
	}
	if body.IMDbID == "" {
		return OMDbMovie{}, fmt.Errorf("%w: %q has no IMDb ID", ErrMovieNotFound, title)
	}

	c.cache.Add(cacheKey, lookupResult{movie: body.OMDbMovie, found: true})
	return body.OMDbMovie, nil
}
