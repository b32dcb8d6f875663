package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xybydy/stremio-criterion/pkg/store"
)

// DefaultListURL is the Criterion list page the collection file was originally built from.
const DefaultListURL = "https://www.criterion.com/shop/browse/list?sort=year&decade=2020s,2010s,2000s,1990s,1980s&direction=desc"

const (
	defaultConcurrency = 4
	defaultTimeout     = 30 * time.Second
	maxPageSize        = 16 << 20
	userAgent          = "Mozilla/5.0 (compatible; stremio-criterion)"
)

// Lookuper resolves a title and year to OMDb data. *OMDbClient implements it.
type Lookuper interface {
	Lookup(ctx context.Context, title, year string) (OMDbMovie, error)
}

// Options configures a Scraper.
type Options struct {
	// Number of concurrent OMDb lookups. Default 4.
	Concurrency int
	// Timeout for fetching the list page. Default 30s.
	Timeout time.Duration
}

// Scraper builds the collection from a Criterion list page, optionally enriched with OMDb data.
type Scraper struct {
	client *http.Client
	omdb   Lookuper
	opts   Options
	logger *zap.Logger
}

// New creates a Scraper. omdb can be nil, then records aren't enriched and keep their slug keys.
func New(client *http.Client, omdb Lookuper, opts Options, logger *zap.Logger) *Scraper {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		client: client,
		omdb:   omdb,
		opts:   opts,
		logger: logger,
	}
}

// Run fetches and parses the list page and enriches the records.
// Failed lookups are logged and leave the record as scraped. Records that resolve to the same ID are merged into the first one.
func (s *Scraper) Run(ctx context.Context, listURL string) ([]store.Record, error) {
	page, err := s.fetch(ctx, listURL)
	if err != nil {
		return nil, err
	}
	records, err := ParseList(bytes.NewReader(page), listURL)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Parsed list page", zap.Int("count", len(records)))

	if s.omdb != nil {
		if err := s.enrich(ctx, records); err != nil {
			return nil, err
		}
	}
	return dedupe(records, s.logger), nil
}

func (s *Scraper) fetch(ctx context.Context, listURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("couldn't fetch list page: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad HTTP response status for list page: %v", res.Status)
	}
	return io.ReadAll(io.LimitReader(res.Body, maxPageSize))
}

// enrich looks up all records concurrently. Each goroutine only writes its own element.
func (s *Scraper) enrich(ctx context.Context, records []store.Record) error {
	var found, missing atomic.Int32

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i := range records {
		g.Go(func() error {
			r := &records[i]
			movie, err := s.omdb.Lookup(ctx, r.Title, string(r.Year))
			switch {
			case err == nil:
				applyOMDb(r, movie)
				found.Add(1)
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, ErrMovieNotFound):
				s.logger.Debug("Movie not found on OMDb, keeping slug", zap.String("title", r.Title))
				missing.Add(1)
			default:
				s.logger.Warn("Couldn't look up movie", zap.String("title", r.Title), zap.Error(err))
				missing.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("enrichment was aborted: %w", err)
	}

	s.logger.Info("Enriched records", zap.Int32("found", found.Load()), zap.Int32("missing", missing.Load()))
	return nil
}

// applyOMDb sets the IMDb ID and the fields the list page doesn't have.
// Scraped values take precedence over OMDb's.
func applyOMDb(r *store.Record, movie OMDbMovie) {
	r.ID = movie.IMDbID
	r.IMDbRating = store.Text(omdbValue(movie.IMDbRating))
	r.Runtime = store.Text(omdbValue(movie.Runtime))
	r.Genre = store.SplitList(omdbValue(movie.Genre))
	r.Cast = store.SplitList(omdbValue(movie.Actors))
	r.Overview = omdbValue(movie.Plot)
	if r.Year == "" {
		r.Year = store.Text(omdbValue(movie.Year))
	}
	if r.Director == "" {
		r.Director = store.Text(omdbValue(movie.Director))
	}
	if r.Country == "" {
		r.Country = store.Text(omdbValue(movie.Country))
	}
}

// omdbValue returns the trimmed value, or an empty string for OMDb's "N/A".
func omdbValue(s string) string {
	s = strings.TrimSpace(s)
	if s == "N/A" {
		return ""
	}
	return s
}

func dedupe(records []store.Record, logger *zap.Logger) []store.Record {
	seen := make(map[string]struct{}, len(records))
	result := make([]store.Record, 0, len(records))
	for _, r := range records {
		key := r.Key()
		if _, ok := seen[key]; ok {
			logger.Debug("Skipping duplicate record", zap.String("key", key), zap.String("title", r.Title))
			continue
		}
		seen[key] = struct{}{}
		result = append(result, r)
	}
	return result
}

// WriteJSON writes the records as an indented JSON array, the format the record store reads.
func WriteJSON(w io.Writer, records []store.Record) error {
	if records == nil {
		records = []store.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(records)
}

// WriteFile writes the records to path. The file is replaced atomically,
// so a running addon watching it never reads a partial file.
func WriteFile(path string, records []store.Record) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("couldn't create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteJSON(tmp, records); err != nil {
		tmp.Close()
		return fmt.Errorf("couldn't write records: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("couldn't write records: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("couldn't set file mode: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
