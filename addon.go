package stremio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	netpprof "net/http/pprof"
	"net/url"
	"os"
	"os/signal"
	"runtime/pprof"
	"strconv"
	"syscall"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"go.uber.org/zap"

	"github.com/xybydy/stremio-criterion/types"
)

// CatalogHandler is the callback for catalog requests for a specific type (like "movie").
// The id parameter is the catalog ID that you specified yourself in the CatalogItem objects in the Manifest.
// The extra parameter contains the extra request parameters, for example "sort".
// Only parameters declared in the catalog's Extra are announced to Stremio, but all sent ones are passed.
// Return an error wrapping ErrBadRequest for catalogs you don't serve and ErrNotFound for missing ones.
type CatalogHandler func(ctx context.Context, id string, extra url.Values) ([]types.MetaPreviewItem, error)

// MetaHandler is the callback for metadata requests for a specific type (like "movie").
// The id parameter can be for example an IMDb ID if your addon handles the "movie" type.
// Return an error wrapping ErrNotFound if there's no meta for the ID.
type MetaHandler func(ctx context.Context, id string) (types.MetaItem, error)

// Addon represents a remote addon.
// You can create one with NewAddon() and then run it with Run().
type Addon struct {
	manifest          types.Manifest
	catalogHandlers   map[string]CatalogHandler
	metaHandlers      map[string]MetaHandler
	opts              Options
	logger            *zap.Logger
	customMiddlewares []customMiddleware
	customEndpoints   []customEndpoint
}

// NewAddon creates a new Addon object that can be started with Run().
// A proper manifest must be supplied, but one of the handler maps can be nil and opts can be the zero value of Options.
func NewAddon(manifest types.Manifest, catalogHandlers map[string]CatalogHandler, metaHandlers map[string]MetaHandler, opts Options) (*Addon, error) {
	// Precondition checks
	switch {
	case manifest.ID == "" || manifest.Name == "" || manifest.Description == "" || manifest.Version == "":
		return nil, errors.New("an empty manifest was passed")
	case catalogHandlers == nil && metaHandlers == nil:
		return nil, errors.New("no handler was passed")
	case (opts.CachePublicCatalogs && opts.CacheAgeCatalogs == 0) ||
		(opts.CachePublicMeta && opts.CacheAgeMeta == 0):
		return nil, errors.New("enabling public caching only makes sense when also setting a cache age")
	case (opts.StaleRevalidateCatalogs != 0 && opts.CacheAgeCatalogs == 0) ||
		(opts.StaleRevalidateMeta != 0 && opts.CacheAgeMeta == 0):
		return nil, errors.New("to enable stale-while-revalidate you must also set cache age")
	case (opts.StaleErrorCatalogs != 0 && opts.CacheAgeCatalogs == 0) ||
		(opts.StaleErrorMeta != 0 && opts.CacheAgeMeta == 0):
		return nil, errors.New("to enable stale-if-error you must also set cache age")
	case (opts.HandleEtagCatalogs && opts.CacheAgeCatalogs == 0) ||
		(opts.HandleEtagMeta && opts.CacheAgeMeta == 0):
		return nil, errors.New("ETag handling only makes sense when also setting a cache age")
	case opts.DisableRequestLogging && (opts.LogIPs || opts.LogUserAgent):
		return nil, errors.New("enabling IP or user agent logging doesn't make sense when disabling request logging")
	case opts.Logger != nil && opts.LoggingLevel != "":
		return nil, errors.New("setting a logging level in the options doesn't make sense when you already set a custom logger")
	case opts.DisableRequestLogging && opts.LogMediaName:
		return nil, errors.New("enabling media name logging doesn't make sense when disabling request logging")
	}

	// Set default values
	if opts.BindAddr == "" {
		opts.BindAddr = DefaultOptions.BindAddr
	}
	if opts.Port == 0 {
		opts.Port = DefaultOptions.Port
	}
	if opts.LoggingLevel == "" {
		opts.LoggingLevel = DefaultOptions.LoggingLevel
	}
	if opts.LogEncoding == "" {
		opts.LogEncoding = DefaultOptions.LogEncoding
	}

	// Configure logger if no custom one is set
	if opts.Logger == nil {
		var err error
		if opts.Logger, err = NewLogger(opts.LoggingLevel, opts.LogEncoding); err != nil {
			return nil, fmt.Errorf("couldn't create new logger: %w", err)
		}
	}

	// Create and return addon.
	// The manifest is cloned so later changes to the caller's copy don't alter the served one.
	return &Addon{
		manifest:        manifest.Clone(),
		catalogHandlers: catalogHandlers,
		metaHandlers:    metaHandlers,
		opts:            opts,
		logger:          opts.Logger,
	}, nil
}

// AddMiddleware appends a custom middleware to the chain of existing middlewares.
// Set path to an empty string or "/" to let the middleware apply to all routes.
// Don't forget to call c.Next() on the Fiber context!
func (a *Addon) AddMiddleware(path string, middleware fiber.Handler) {
	customMW := customMiddleware{
		path: path,
		mw:   middleware,
	}
	a.customMiddlewares = append(a.customMiddlewares, customMW)
}

// AddEndpoint adds a custom endpoint (a route and its handler).
func (a *Addon) AddEndpoint(method, path string, handler fiber.Handler) {
	customEndpoint := customEndpoint{
		method:  method,
		path:    path,
		handler: handler,
	}
	a.customEndpoints = append(a.customEndpoints, customEndpoint)
}

// Run starts the remote addon. It sets up an HTTP server that handles requests to "/manifest.json" etc. and gracefully handles shutdowns.
// The call is *blocking*, so use the stoppingChan param if you want to be notified when the addon is about to shut down
// because of a system signal like Ctrl+C or `docker stop`. It should be a buffered channel with a capacity of 1.
func (a *Addon) Run(stoppingChan chan bool, fiberConf *fiber.Config) {
	logger := a.logger

	defer func() {
		// Syncing stdout/stderr fails on some platforms, which isn't worth reporting.
		_ = logger.Sync()
	}()

	// Make sure the passed channel is buffered, so we can send a message before shutting down and not be blocked by the channel.
	if stoppingChan != nil && cap(stoppingChan) < 1 {
		logger.Fatal("The passed stopping channel isn't buffered")
	}

	logger.Info("Setting up server...")
	app := a.setupApp(fiberConf)
	logger.Info("Finished setting up server")

	stopping := false
	stoppingPtr := &stopping

	addr := a.opts.BindAddr + ":" + strconv.Itoa(a.opts.Port)
	logger.Info("Starting server", zap.String("address", addr))
	go func() {
		if err := app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
			if !*stoppingPtr {
				logger.Fatal("Couldn't start server", zap.Error(err))
			} else {
				logger.Fatal("Error in app.Listen() during server shutdown (probably context deadline expired before the server could shutdown cleanly)", zap.Error(err))
			}
		}
	}()

	// Graceful shutdown

	c := make(chan os.Signal, 1)
	// Accept SIGINT (Ctrl+C) and SIGTERM (`docker stop`)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	logger.Info("Received signal, shutting down server...", zap.Stringer("signal", sig))
	*stoppingPtr = true
	if stoppingChan != nil {
		stoppingChan <- true
	}
	// Graceful shutdown, waiting for all current requests to finish without accepting new ones.
	if err := app.Shutdown(); err != nil {
		logger.Fatal("Error shutting down server", zap.Error(err))
	}
	logger.Info("Finished shutting down server")
}

// setupApp creates the Fiber app with all middlewares and routes.
func (a *Addon) setupApp(fiberConf *fiber.Config) *fiber.App {
	logger := a.logger

	if fiberConf == nil {
		fiberConf = &fiber.Config{
			ErrorHandler: func(c fiber.Ctx, err error) error {
				code := fiber.StatusInternalServerError
				var e *fiber.Error
				if errors.As(err, &e) {
					code = e.Code
				}
				if code >= fiber.StatusInternalServerError {
					logger.Error("Fiber's error handler was called", zap.Error(err), zap.String("url", c.OriginalURL()))
				}
				c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
				return c.Status(code).SendString(http.StatusText(code))
			},
		}
	}

	app := fiber.New(*fiberConf)

	// Middlewares

	app.Use(recover.New())
	if !a.opts.DisableRequestLogging {
		app.Use(createLoggingMiddleware(logger, a.opts.LogIPs, a.opts.LogUserAgent, a.opts.LogMediaName))
	}
	if a.opts.Metrics {
		app.Use(createMetricsMiddleware())
	}
	app.Use(corsMiddleware()) // Stremio doesn't show responses when no CORS middleware is used!
	for _, customMW := range a.customMiddlewares {
		app.Use(customMW.path, customMW.mw)
	}

	// Extra endpoints

	app.Get("/health", createHealthHandler(logger))
	// Optional profiling
	if a.opts.Profiling {
		group := app.Group("/debug/pprof")

		group.Get("/", func(c fiber.Ctx) error {
			c.Set(fiber.HeaderContentType, fiber.MIMETextHTML)
			return adaptor.HTTPHandlerFunc(netpprof.Index)(c)
		})
		for _, p := range pprof.Profiles() {
			group.Get("/"+p.Name(), adaptor.HTTPHandler(netpprof.Handler(p.Name())))
		}
		group.Get("/cmdline", adaptor.HTTPHandlerFunc(netpprof.Cmdline))
		group.Get("/profile", adaptor.HTTPHandlerFunc(netpprof.Profile))
		group.Get("/trace", adaptor.HTTPHandlerFunc(netpprof.Trace))
	}
	// Optional metrics
	if a.opts.Metrics {
		app.Get("/metrics", adaptor.HTTPHandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			metrics.WritePrometheus(w, true)
		}))
	}

	// Stremio endpoints

	app.Get("/manifest.json", createManifestHandler(a.manifest, logger))
	if a.catalogHandlers != nil {
		catalogPolicy := cachePolicy{
			maxAge:          a.opts.CacheAgeCatalogs,
			staleRevalidate: a.opts.StaleRevalidateCatalogs,
			staleError:      a.opts.StaleErrorCatalogs,
			public:          a.opts.CachePublicCatalogs,
			handleEtag:      a.opts.HandleEtagCatalogs,
		}
		catalogHandler := createCatalogHandler(a.manifest, a.catalogHandlers, catalogPolicy, logger)
		app.Get("/catalog/:type/:id.json", catalogHandler)
		app.Get("/catalog/:type/:id/:extras", catalogHandler)
	}
	if a.metaHandlers != nil {
		metaPolicy := cachePolicy{
			maxAge:          a.opts.CacheAgeMeta,
			staleRevalidate: a.opts.StaleRevalidateMeta,
			staleError:      a.opts.StaleErrorMeta,
			public:          a.opts.CachePublicMeta,
			handleEtag:      a.opts.HandleEtagMeta,
		}
		app.Get("/meta/:type/:id.json", createMetaHandler(a.metaHandlers, metaPolicy, logger))
	}

	// Additional endpoints

	// Root redirects to website
	if a.opts.RedirectURL != "" {
		app.Get("/", createRootHandler(a.opts.RedirectURL, logger))
	}

	// Custom endpoints
	for _, customEndpoint := range a.customEndpoints {
		app.Add([]string{customEndpoint.method}, customEndpoint.path, customEndpoint.handler)
	}

	return app
}
