package stremio

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/xybydy/stremio-criterion/types"
)

type customEndpoint struct {
	method  string
	path    string
	handler fiber.Handler
}

// cachePolicy controls the caching headers of a resource's responses.
type cachePolicy struct {
	maxAge          time.Duration
	staleRevalidate time.Duration
	staleError      time.Duration
	public          bool
	handleEtag      bool
}

// header returns the Cache-Control header value, or an empty string if responses shouldn't be cached.
func (p cachePolicy) header() string {
	if p.maxAge <= 0 {
		return ""
	}
	directives := []string{"max-age=" + strconv.Itoa(int(p.maxAge.Seconds()))}
	if p.staleRevalidate > 0 {
		directives = append(directives, "stale-while-revalidate="+strconv.Itoa(int(p.staleRevalidate.Seconds())))
	}
	if p.staleError > 0 {
		directives = append(directives, "stale-if-error="+strconv.Itoa(int(p.staleError.Seconds())))
	}
	if p.public {
		directives = append(directives, "public")
	}
	return strings.Join(directives, ", ")
}

type catalogResponse struct {
	Metas []types.MetaPreviewItem `json:"metas"`
	// ExtraSupported lists the extra parameters the catalog honors, so Stremio shows e.g. the sort selection.
	ExtraSupported []string `json:"extraSupported,omitempty"`
}

type metaResponse struct {
	Meta types.MetaItem `json:"meta"`
}

func createHealthHandler(logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		logger.Debug("healthHandler called")
		return c.SendString("OK")
	}
}

func createManifestHandler(manifest types.Manifest, logger *zap.Logger) fiber.Handler {
	manifestBody, err := json.Marshal(manifest)
	if err != nil {
		logger.Fatal("Couldn't marshal manifest", zap.Error(err))
	}

	return func(c fiber.Ctx) error {
		logger.Debug("manifestHandler called")
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(manifestBody)
	}
}

func createCatalogHandler(manifest types.Manifest, catalogHandlers map[string]CatalogHandler, policy cachePolicy, logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		logger.Debug("catalogHandler called")

		requestedType := c.Params("type")
		catalogHandler, ok := catalogHandlers[requestedType]
		if !ok {
			logger.Debug("Unsupported type requested", zap.String("type", requestedType))
			return c.SendStatus(fiber.StatusBadRequest)
		}
		id, err := url.PathUnescape(c.Params("id"))
		if err != nil {
			return c.SendStatus(fiber.StatusBadRequest)
		}
		extra, err := parseExtras(c.Params("extras"))
		if err != nil {
			logger.Debug("Couldn't parse catalog extras", zap.String("extras", c.Params("extras")), zap.Error(err))
			return c.SendStatus(fiber.StatusBadRequest)
		}

		metas, err := catalogHandler(c.Context(), id, extra)
		if err != nil {
			return sendError(c, err, "catalog", logger)
		}
		if metas == nil {
			// Stremio expects an array, not null.
			metas = []types.MetaPreviewItem{}
		}

		res := catalogResponse{Metas: metas}
		if catalog, ok := manifest.Catalog(requestedType, id); ok {
			res.ExtraSupported = catalog.ExtraNames()
		}
		return sendJSON(c, res, policy, logger)
	}
}

func createMetaHandler(metaHandlers map[string]MetaHandler, policy cachePolicy, logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		logger.Debug("metaHandler called")

		requestedType := c.Params("type")
		metaHandler, ok := metaHandlers[requestedType]
		if !ok {
			logger.Debug("Unsupported type requested", zap.String("type", requestedType))
			return c.SendStatus(fiber.StatusBadRequest)
		}
		id, err := url.PathUnescape(c.Params("id"))
		if err != nil {
			return c.SendStatus(fiber.StatusBadRequest)
		}

		meta, err := metaHandler(c.Context(), id)
		if err != nil {
			return sendError(c, err, "meta", logger)
		}
		c.Locals(mediaNameKey, fmt.Sprintf("%v (%v)", meta.Name, meta.ReleaseInfo))

		return sendJSON(c, metaResponse{Meta: meta}, policy, logger)
	}
}

func createRootHandler(redirectURL string, logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		logger.Debug("rootHandler called")
		logger.Debug("Responding with redirect", zap.String("redirectURL", redirectURL))
		c.Set(fiber.HeaderLocation, redirectURL)
		return c.SendStatus(fiber.StatusMovedPermanently)
	}
}

// sendError maps handler errors to response status codes.
func sendError(c fiber.Ctx, err error, resource string, logger *zap.Logger) error {
	switch {
	case errors.Is(err, ErrNotFound):
		logger.Debug("Addon handler signaled not found", zap.String("resource", resource), zap.Error(err))
		return c.SendStatus(fiber.StatusNotFound)
	case errors.Is(err, ErrBadRequest):
		logger.Debug("Addon handler signaled bad request", zap.String("resource", resource), zap.Error(err))
		return c.SendStatus(fiber.StatusBadRequest)
	default:
		logger.Error("Addon handler returned error", zap.String("resource", resource), zap.Error(err))
		return c.SendStatus(fiber.StatusInternalServerError)
	}
}

// sendJSON sends the JSON encoded response with the caching headers of the policy.
// The ETag is the xxhash of the body, so a "304 Not Modified" is only sent for identical content.
func sendJSON(c fiber.Ctx, res any, policy cachePolicy, logger *zap.Logger) error {
	body, err := json.Marshal(res)
	if err != nil {
		logger.Error("Couldn't marshal response", zap.Error(err))
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	if cacheControl := policy.header(); cacheControl != "" {
		c.Set(fiber.HeaderCacheControl, cacheControl)
	}
	if policy.handleEtag {
		eTag := `"` + strconv.FormatUint(xxhash.Sum64(body), 16) + `"`
		c.Set(fiber.HeaderETag, eTag)
		if ifNoneMatch := c.Get(fiber.HeaderIfNoneMatch); ifNoneMatch != "" && strings.Contains(ifNoneMatch, eTag) {
			return c.SendStatus(fiber.StatusNotModified)
		}
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}
