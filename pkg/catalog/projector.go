package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"go.uber.org/zap"

	stremio "github.com/xybydy/stremio-criterion"
	"github.com/xybydy/stremio-criterion/pkg/store"
	"github.com/xybydy/stremio-criterion/types"
)

const (
	// ManifestID is the ID under which the addon is installed in Stremio.
	ManifestID = "stremio-criterion"
	// MovieType is the only type the catalog serves.
	MovieType = "movie"

	manifestName        = "Criterion Collection"
	manifestDescription = "Lists Criterion Collection movies with advanced sorting options."
	manifestLogo        = "https://upload.wikimedia.org/wikipedia/commons/5/5d/The_Criterion_Collection_Logo.svg"

	logoURLFormat  = "https://images.metahub.space/logo/medium/%s/img"
	imdbURLFormat  = "https://imdb.com/title/%s/"
	searchURLBase  = "stremio:///search?search="
	sortExtraName  = "sort"
	unknownRelease = "Unknown"
	missingRuntime = "N/A"
)

// Link categories of meta links.
const (
	CategoryCast      = "Cast"
	CategoryDirectors = "Directors"
	CategoryGenres    = "Genres"
	CategoryRating    = "imdb"
)

var (
	// ErrRecordNotFound is returned when no record matches the requested ID. It wraps stremio.ErrNotFound.
	ErrRecordNotFound = fmt.Errorf("record not found: %w", stremio.ErrNotFound)
	// ErrUnsupportedCatalog is returned for catalog IDs the projector doesn't serve. It wraps stremio.ErrBadRequest.
	ErrUnsupportedCatalog = fmt.Errorf("unsupported catalog: %w", stremio.ErrBadRequest)
)

// RatingLinkPolicy defines where the IMDb rating link is added.
type RatingLinkPolicy string

const (
	RatingLinksNone    RatingLinkPolicy = "none"
	RatingLinksMeta    RatingLinkPolicy = "meta"
	RatingLinksCatalog RatingLinkPolicy = "catalog"
	RatingLinksBoth    RatingLinkPolicy = "both"
)

func (p RatingLinkPolicy) inMeta() bool {
	return p == RatingLinksMeta || p == RatingLinksBoth
}

func (p RatingLinkPolicy) inCatalog() bool {
	return p == RatingLinksCatalog || p == RatingLinksBoth
}

// Options configures a Projector.
type Options struct {
	CatalogID   string
	CatalogName string
	// SlugFallback lets meta lookups match a record by its title slug when no ID matches.
	SlugFallback bool
	RatingLinks  RatingLinkPolicy
	// DefaultDescription is used for records without overview and description.
	DefaultDescription string
}

// DefaultOptions is an Options object with default values.
var DefaultOptions = Options{
	CatalogID:          "criterion",
	CatalogName:        "Criterion Collection",
	SlugFallback:       true,
	RatingLinks:        RatingLinksMeta,
	DefaultDescription: "A film from the Criterion Collection.",
}

// RecordSource provides the current record collection. *store.Store implements it.
type RecordSource interface {
	Records(ctx context.Context) []store.Record
}

// Projector turns the records of a RecordSource into catalog and meta responses.
// Nothing is cached: every request is projected from the source's current records.
type Projector struct {
	source RecordSource
	opts   Options
	logger *zap.Logger
}

// NewProjector creates a Projector. Empty option fields are set to their default values.
func NewProjector(source RecordSource, opts Options, logger *zap.Logger) (*Projector, error) {
	if source == nil {
		return nil, errors.New("no record source was passed")
	}
	if opts.CatalogID == "" {
		opts.CatalogID = DefaultOptions.CatalogID
	}
	if opts.CatalogName == "" {
		opts.CatalogName = DefaultOptions.CatalogName
	}
	if opts.DefaultDescription == "" {
		opts.DefaultDescription = DefaultOptions.DefaultDescription
	}
	switch opts.RatingLinks {
	case "":
		opts.RatingLinks = DefaultOptions.RatingLinks
	case RatingLinksNone, RatingLinksMeta, RatingLinksCatalog, RatingLinksBoth:
	default:
		return nil, fmt.Errorf("unknown rating link policy %q", opts.RatingLinks)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Projector{
		source: source,
		opts:   opts,
		logger: logger,
	}, nil
}

// Manifest returns the addon manifest with the catalog and its sort options.
func (p *Projector) Manifest(version string) types.Manifest {
	sortOptions := make([]string, 0, len(sortKeys))
	for _, key := range sortKeys {
		sortOptions = append(sortOptions, string(key))
	}

	return types.Manifest{
		ID:          ManifestID,
		Name:        manifestName,
		Description: manifestDescription,
		Version:     version,
		ResourceItems: []types.ResourceItem{
			{Name: "catalog", Types: []string{MovieType}},
			{Name: "meta", Types: []string{MovieType}},
		},
		Types: []string{MovieType},
		Catalogs: []types.CatalogItem{
			{
				Type: MovieType,
				ID:   p.opts.CatalogID,
				Name: p.opts.CatalogName,
				Extra: []types.ExtraItem{
					{Name: sortExtraName, Options: sortOptions},
				},
			},
		},
		// Stremio only asks for meta of IMDb IDs, slug IDs are resolved for direct HTTP callers.
		IDprefixes: []string{"tt"},
		Logo:       manifestLogo,
	}
}

// Catalog serves the catalog with the given ID, sorted by the "sort" extra.
// Its signature matches stremio.CatalogHandler.
func (p *Projector) Catalog(ctx context.Context, id string, extra url.Values) ([]types.MetaPreviewItem, error) {
	if id != p.opts.CatalogID {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCatalog, id)
	}

	requested := extra.Get(sortExtraName)
	key, ok := ParseSortKey(requested)
	if !ok && requested != "" {
		p.logger.Debug("Unknown sort key, using default", zap.String("sort", requested), zap.String("default", string(key)))
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`criterion_catalog_requests_total{sort=%q}`, key)).Inc()

	records := Sort(p.source.Records(ctx), key)
	metas := make([]types.MetaPreviewItem, 0, len(records))
	for _, r := range records {
		metas = append(metas, p.CatalogEntry(r))
	}
	return metas, nil
}

// Meta serves the meta of the record with the given ID.
// Its signature matches stremio.MetaHandler.
func (p *Projector) Meta(ctx context.Context, id string) (types.MetaItem, error) {
	r, err := FindByID(p.source.Records(ctx), id, p.opts.SlugFallback)
	if err != nil {
		return types.MetaItem{}, err
	}
	return p.MetaEntry(r), nil
}

// FindByID returns the first record with the given ID.
// With slugFallback the record whose title slug equals id is returned if no ID matches.
func FindByID(records []store.Record, id string, slugFallback bool) (store.Record, error) {
	if id != "" {
		for _, r := range records {
			if r.ID == id {
				return r, nil
			}
		}
		if slugFallback {
			for _, r := range records {
				if r.Slug() == id {
					return r, nil
				}
			}
		}
	}
	return store.Record{}, fmt.Errorf("%w: %q", ErrRecordNotFound, id)
}

// CatalogEntry maps a record to its catalog representation.
func (p *Projector) CatalogEntry(r store.Record) types.MetaPreviewItem {
	entry := types.MetaPreviewItem{
		ID:          r.Key(),
		Type:        MovieType,
		Name:        r.Title,
		Poster:      r.Poster,
		Background:  background(r),
		Logo:        logo(r),
		Genres:      r.Genres(),
		IMDbRating:  rating(r),
		ReleaseInfo: releaseInfo(r),
		Runtime:     runtime(r),
		Description: p.description(r),
	}
	if p.opts.RatingLinks.inCatalog() {
		if link, ok := ratingLink(r); ok {
			entry.Links = []types.MetaLinkItem{link}
		}
	}
	return entry
}

// MetaEntry maps a record to its meta representation.
func (p *Projector) MetaEntry(r store.Record) types.MetaItem {
	meta := types.MetaItem{
		ID:          r.Key(),
		Type:        MovieType,
		Name:        r.Title,
		Genres:      r.Genres(),
		Poster:      r.Poster,
		Background:  background(r),
		Logo:        logo(r),
		Description: p.description(r),
		ReleaseInfo: releaseInfo(r),
		Cast:        r.Cast,
		IMDbRating:  rating(r),
		Links:       p.Links(r),
		Runtime:     runtime(r),
		Country:     string(r.Country),
		Website:     r.CriterionURL,
	}
	if r.Director != "" {
		meta.Director = []string{string(r.Director)}
	}
	if trailer, ok := trailerStream(r.Trailer); ok {
		meta.Trailers = []types.StreamItem{trailer}
	}
	return meta
}

// Links returns the meta links of a record: one per cast member, one for the director,
// one per genre and, depending on the rating link policy, one for the rating.
func (p *Projector) Links(r store.Record) []types.MetaLinkItem {
	var links []types.MetaLinkItem
	for _, name := range r.Cast {
		links = append(links, searchLink(name, CategoryCast))
	}
	if r.Director != "" {
		links = append(links, searchLink(string(r.Director), CategoryDirectors))
	}
	for _, genre := range r.Genres() {
		links = append(links, searchLink(genre, CategoryGenres))
	}
	if p.opts.RatingLinks.inMeta() {
		if link, ok := ratingLink(r); ok {
			links = append(links, link)
		}
	}
	return links
}

func (p *Projector) description(r store.Record) string {
	if synopsis := r.Synopsis(); synopsis != "" {
		return synopsis
	}
	return p.opts.DefaultDescription
}

func searchLink(name, category string) types.MetaLinkItem {
	return types.MetaLinkItem{
		Name:     name,
		Category: category,
		URL:      searchURLBase + url.QueryEscape(name),
	}
}

func ratingLink(r store.Record) (types.MetaLinkItem, bool) {
	value := rating(r)
	if value == "" {
		return types.MetaLinkItem{}, false
	}
	link := searchLink(value, CategoryRating)
	if r.HasIMDbID() {
		link.URL = fmt.Sprintf(imdbURLFormat, r.ID)
	}
	return link, true
}

func rating(r store.Record) string {
	value, ok := r.Rating()
	if !ok {
		return ""
	}
	return strconv.FormatFloat(value, 'f', 1, 64)
}

func logo(r store.Record) string {
	if r.ID == "" {
		return ""
	}
	return fmt.Sprintf(logoURLFormat, r.ID)
}

func background(r store.Record) string {
	if r.Background != "" {
		return r.Background
	}
	return r.Poster
}

func releaseInfo(r store.Record) string {
	if r.Year == "" {
		return unknownRelease
	}
	return string(r.Year)
}

func runtime(r store.Record) string {
	if r.Runtime == "" || strings.EqualFold(string(r.Runtime), "Unknown") {
		return missingRuntime
	}
	return string(r.Runtime)
}

// trailerStream turns a trailer URL into a stream. YouTube links become YouTube streams,
// anything else is opened externally.
func trailerStream(trailer string) (types.StreamItem, bool) {
	trailer = strings.TrimSpace(trailer)
	if trailer == "" {
		return types.StreamItem{}, false
	}
	if id := youtubeID(trailer); id != "" {
		return types.StreamItem{YoutubeID: id, Title: "Trailer"}, true
	}
	return types.StreamItem{ExternalURL: trailer, Title: "Trailer"}, true
}

func youtubeID(trailer string) string {
	u, err := url.Parse(trailer)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	switch host {
	case "youtube.com", "m.youtube.com":
		if u.Path == "/watch" {
			return u.Query().Get("v")
		}
		if id, ok := strings.CutPrefix(u.Path, "/embed/"); ok {
			return strings.Trim(id, "/")
		}
	case "youtu.be":
		return strings.Trim(u.Path, "/")
	}
	return ""
}
