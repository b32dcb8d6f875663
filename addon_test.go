package stremio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xybydy/stremio-criterion/types"
)

var testManifest = types.Manifest{
	ID:          "org.example.criterion",
	Name:        "Criterion",
	Description: "Test addon",
	Version:     "0.1.0",
	ResourceItems: []types.ResourceItem{
		{Name: "catalog", Types: []string{"movie"}},
		{Name: "meta", Types: []string{"movie"}, IDprefixes: []string{"tt"}},
	},
	Types: []string{"movie"},
	Catalogs: []types.CatalogItem{
		{
			Type: "movie",
			ID:   "criterion",
			Name: "Criterion Collection",
			Extra: []types.ExtraItem{
				{Name: "sort", Options: []string{"Year Ascending", "Year Descending"}},
			},
		},
	},
	IDprefixes: []string{"tt"},
}

var testMetas = []types.MetaPreviewItem{
	{ID: "tt0050083", Type: "movie", Name: "12 Angry Men", ReleaseInfo: "1957"},
	{ID: "tt0048473", Type: "movie", Name: "Pather Panchali", ReleaseInfo: "1955"},
}

func testCatalogHandler(_ context.Context, id string, extra url.Values) ([]types.MetaPreviewItem, error) {
	switch id {
	case "criterion":
	case "broken":
		return nil, errors.New("boom")
	case "empty":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown catalog %q: %w", id, ErrBadRequest)
	}
	if extra.Get("sort") == "Year Ascending" {
		return []types.MetaPreviewItem{testMetas[1], testMetas[0]}, nil
	}
	return testMetas, nil
}

func testMetaHandler(_ context.Context, id string) (types.MetaItem, error) {
	for _, meta := range testMetas {
		if meta.ID == id {
			return types.MetaItem{ID: meta.ID, Type: meta.Type, Name: meta.Name, ReleaseInfo: meta.ReleaseInfo}, nil
		}
	}
	return types.MetaItem{}, fmt.Errorf("no movie with ID %q: %w", id, ErrNotFound)
}

func newTestApp(t *testing.T, opts Options) *fiber.App {
	t.Helper()
	opts.Logger = zap.NewNop()
	addon, err := NewAddon(testManifest,
		map[string]CatalogHandler{"movie": testCatalogHandler},
		map[string]MetaHandler{"movie": testMetaHandler},
		opts)
	require.NoError(t, err)
	addon.AddEndpoint(fiber.MethodGet, "/custom", func(c fiber.Ctx) error {
		return c.SendString("custom")
	})
	return addon.setupApp(nil)
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	res, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())
	return res, body
}

func get(t *testing.T, app *fiber.App, target string) (*http.Response, []byte) {
	t.Helper()
	return doRequest(t, app, httptest.NewRequest(fiber.MethodGet, target, nil))
}

func TestAddonEndpoints(t *testing.T) {
	app := newTestApp(t, Options{RedirectURL: "https://www.criterion.com"})

	t.Run("manifest", func(t *testing.T) {
		res, body := get(t, app, "/manifest.json")
		require.Equal(t, http.StatusOK, res.StatusCode)
		require.Equal(t, fiber.MIMEApplicationJSON, res.Header.Get(fiber.HeaderContentType))

		var m types.Manifest
		require.NoError(t, json.Unmarshal(body, &m))
		require.Equal(t, testManifest, m)
	})

	t.Run("catalog", func(t *testing.T) {
		res, body := get(t, app, "/catalog/movie/criterion.json")
		require.Equal(t, http.StatusOK, res.StatusCode)
		require.Empty(t, res.Header.Get(fiber.HeaderCacheControl))

		var catalog catalogResponse
		require.NoError(t, json.Unmarshal(body, &catalog))
		require.Equal(t, testMetas, catalog.Metas)
		require.Equal(t, []string{"sort"}, catalog.ExtraSupported)
	})

	t.Run("catalog with extras", func(t *testing.T) {
		res, body := get(t, app, "/catalog/movie/criterion/sort=Year%20Ascending.json")
		require.Equal(t, http.StatusOK, res.StatusCode)

		var catalog catalogResponse
		require.NoError(t, json.Unmarshal(body, &catalog))
		require.Len(t, catalog.Metas, 2)
		require.Equal(t, "tt0048473", catalog.Metas[0].ID)
	})

	t.Run("empty catalog is an array", func(t *testing.T) {
		res, body := get(t, app, "/catalog/movie/empty.json")
		require.Equal(t, http.StatusOK, res.StatusCode)
		require.JSONEq(t, `{"metas": []}`, string(body))
	})

	t.Run("unsupported type", func(t *testing.T) {
		res, _ := get(t, app, "/catalog/series/criterion.json")
		require.Equal(t, http.StatusBadRequest, res.StatusCode)
		res, _ = get(t, app, "/meta/series/tt0050083.json")
		require.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("unsupported catalog", func(t *testing.T) {
		res, _ := get(t, app, "/catalog/movie/top.json")
		require.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("handler error", func(t *testing.T) {
		res, _ := get(t, app, "/catalog/movie/broken.json")
		require.Equal(t, http.StatusInternalServerError, res.StatusCode)
	})

	t.Run("meta", func(t *testing.T) {
		res, body := get(t, app, "/meta/movie/tt0050083.json")
		require.Equal(t, http.StatusOK, res.StatusCode)

		var meta metaResponse
		require.NoError(t, json.Unmarshal(body, &meta))
		require.Equal(t, "12 Angry Men", meta.Meta.Name)
	})

	t.Run("meta not found", func(t *testing.T) {
		res, _ := get(t, app, "/meta/movie/tt0000000.json")
		require.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("health", func(t *testing.T) {
		res, body := get(t, app, "/health")
		require.Equal(t, http.StatusOK, res.StatusCode)
		require.Equal(t, "OK", string(body))
	})

	t.Run("root redirect", func(t *testing.T) {
		res, _ := get(t, app, "/")
		require.Equal(t, http.StatusMovedPermanently, res.StatusCode)
		require.Equal(t, "https://www.criterion.com", res.Header.Get(fiber.HeaderLocation))
	})

	t.Run("custom endpoint", func(t *testing.T) {
		res, body := get(t, app, "/custom")
		require.Equal(t, http.StatusOK, res.StatusCode)
		require.Equal(t, "custom", string(body))
	})

	t.Run("unknown route", func(t *testing.T) {
		res, _ := get(t, app, "/stream/movie/tt0050083.json")
		require.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("metrics disabled", func(t *testing.T) {
		res, _ := get(t, app, "/metrics")
		require.Equal(t, http.StatusNotFound, res.StatusCode)
	})
}

func TestCORS(t *testing.T) {
	app := newTestApp(t, Options{})

	res, _ := get(t, app, "/manifest.json")
	require.Equal(t, "*", res.Header.Get(fiber.HeaderAccessControlAllowOrigin))

	res, _ = doRequest(t, app, httptest.NewRequest(fiber.MethodOptions, "/catalog/movie/criterion.json", nil))
	require.Equal(t, http.StatusNoContent, res.StatusCode)
	require.Equal(t, "*", res.Header.Get(fiber.HeaderAccessControlAllowOrigin))
}

func TestCachingHeaders(t *testing.T) {
	app := newTestApp(t, Options{
		CacheAgeCatalogs:        time.Hour,
		StaleRevalidateCatalogs: time.Minute,
		CachePublicCatalogs:     true,
		HandleEtagCatalogs:      true,
		CacheAgeMeta:            24 * time.Hour,
	})

	res, _ := get(t, app, "/catalog/movie/criterion.json")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "max-age=3600, stale-while-revalidate=60, public", res.Header.Get(fiber.HeaderCacheControl))
	eTag := res.Header.Get(fiber.HeaderETag)
	require.NotEmpty(t, eTag)

	req := httptest.NewRequest(fiber.MethodGet, "/catalog/movie/criterion.json", nil)
	req.Header.Set(fiber.HeaderIfNoneMatch, eTag)
	res, _ = doRequest(t, app, req)
	require.Equal(t, http.StatusNotModified, res.StatusCode)

	// Different content, different ETag
	req = httptest.NewRequest(fiber.MethodGet, "/catalog/movie/criterion/sort=Year%20Ascending.json", nil)
	req.Header.Set(fiber.HeaderIfNoneMatch, eTag)
	res, _ = doRequest(t, app, req)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEqual(t, eTag, res.Header.Get(fiber.HeaderETag))

	res, _ = get(t, app, "/meta/movie/tt0050083.json")
	require.Equal(t, "max-age=86400", res.Header.Get(fiber.HeaderCacheControl))
	require.Empty(t, res.Header.Get(fiber.HeaderETag))
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t, Options{Metrics: true})

	res, _ := get(t, app, "/manifest.json")
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, body := get(t, app, "/metrics")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), `http_requests_total{endpoint="manifest",status="200"}`)
}

func TestNewAddonPreconditions(t *testing.T) {
	catalogHandlers := map[string]CatalogHandler{"movie": testCatalogHandler}

	tests := []struct {
		name            string
		manifest        types.Manifest
		catalogHandlers map[string]CatalogHandler
		opts            Options
	}{
		{"empty manifest", types.Manifest{}, catalogHandlers, Options{}},
		{"no handlers", testManifest, nil, Options{}},
		{"public caching without age", testManifest, catalogHandlers, Options{CachePublicCatalogs: true}},
		{"stale revalidate without age", testManifest, catalogHandlers, Options{StaleRevalidateMeta: time.Minute}},
		{"stale error without age", testManifest, catalogHandlers, Options{StaleErrorCatalogs: time.Minute}},
		{"etag without age", testManifest, catalogHandlers, Options{HandleEtagMeta: true}},
		{"IP logging without request logging", testManifest, catalogHandlers, Options{DisableRequestLogging: true, LogIPs: true}},
		{"media name logging without request logging", testManifest, catalogHandlers, Options{DisableRequestLogging: true, LogMediaName: true}},
		{"custom logger with level", testManifest, catalogHandlers, Options{Logger: zap.NewNop(), LoggingLevel: "debug"}},
		{"unknown logging level", testManifest, catalogHandlers, Options{LoggingLevel: "chatty"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAddon(tt.manifest, tt.catalogHandlers, nil, tt.opts)
			require.Error(t, err)
		})
	}

	addon, err := NewAddon(testManifest, catalogHandlers, nil, Options{Logger: zap.NewNop()})
	require.NoError(t, err)
	require.Equal(t, DefaultOptions.BindAddr, addon.opts.BindAddr)
	require.Equal(t, DefaultOptions.Port, addon.opts.Port)
}

func TestNewAddonClonesManifest(t *testing.T) {
	manifest := testManifest.Clone()
	addon, err := NewAddon(manifest, map[string]CatalogHandler{"movie": testCatalogHandler}, nil, Options{Logger: zap.NewNop()})
	require.NoError(t, err)

	manifest.Catalogs[0].Extra[0].Options[0] = "changed"
	require.Equal(t, "Year Ascending", addon.manifest.Catalogs[0].Extra[0].Options[0])
}

func TestParseExtras(t *testing.T) {
	extra, err := parseExtras("")
	require.NoError(t, err)
	require.Empty(t, extra)

	extra, err = parseExtras("sort=Year%20Ascending&genre=Drama.json")
	require.NoError(t, err)
	require.Equal(t, "Year Ascending", extra.Get("sort"))
	require.Equal(t, "Drama", extra.Get("genre"))

	_, err = parseExtras("sort=%zz.json")
	require.Error(t, err)
}

func TestCachePolicyHeader(t *testing.T) {
	require.Empty(t, cachePolicy{public: true}.header())
	require.Equal(t, "max-age=60", cachePolicy{maxAge: time.Minute}.header())
	require.Equal(t, "max-age=60, stale-while-revalidate=10, stale-if-error=3600, public", cachePolicy{
		maxAge:          time.Minute,
		staleRevalidate: 10 * time.Second,
		staleError:      time.Hour,
		public:          true,
	}.header())
}

func TestEndpointLabel(t *testing.T) {
	require.Equal(t, "manifest", endpointLabel("/manifest.json"))
	require.Equal(t, "catalog", endpointLabel("/catalog/movie/criterion.json"))
	require.Equal(t, "meta", endpointLabel("/meta/movie/tt0050083.json"))
	require.Equal(t, "other", endpointLabel("/criterion-movies"))
}
