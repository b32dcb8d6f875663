package stremio

import (
	"time"

	"go.uber.org/zap"
)

// Options are the options that can be used to configure the addon.
type Options struct {
	// The interface address to bind to.
	// "0.0.0.0" binds to all interfaces. "localhost" only allows access from the local host.
	// Default "localhost".
	BindAddr string
	// The port to listen on.
	// Default 8080.
	Port int
	// You can set a custom logger, or leave this empty to create a new one
	// with the LoggingLevel and LogEncoding from these options.
	Logger *zap.Logger
	// The logging level.
	// Only logs with the same or a higher log level will be shown.
	// For example when you set it to "info", info, warn and error logs will be shown, but no debug logs.
	// Accepts "debug", "info", "warn" and "error".
	// Default "info".
	LoggingLevel string
	// Configures the log encoding, "console" or "json".
	// Default "console".
	LogEncoding string
	// URL to redirect to when someone requests the root of the handler instead of the manifest, catalog or meta.
	// When no value is set, it will lead to a "404 Not Found" response.
	RedirectURL string
	// Flag for indicating whether requests should be logged.
	DisableRequestLogging bool
	// Flag for indicating whether IP addresses should be logged.
	LogIPs bool
	// Flag for indicating whether the user agent header should be logged.
	LogUserAgent bool
	// Flag for indicating whether the name of the movie should be logged for meta requests.
	LogMediaName bool
	// Duration of client/proxy-side cache for responses from the catalog endpoint.
	// Helps reducing number of requests and transferred data volume to/from the server.
	// The result is not cached by the SDK on the server side, so if two *separate* users make a request,
	// and no proxy cached the response, your CatalogHandler will be called twice.
	// Default 0.
	CacheAgeCatalogs time.Duration
	// Same as CacheAgeCatalogs, but for meta responses.
	CacheAgeMeta time.Duration
	// Flag for indicating whether the "public" directive should be added to the Cache-Control header.
	// Only makes sense with a CacheAge.
	CachePublicCatalogs bool
	CachePublicMeta     bool
	// Adds the "stale-while-revalidate" directive to the Cache-Control header.
	// Only makes sense with a CacheAge.
	StaleRevalidateCatalogs time.Duration
	StaleRevalidateMeta     time.Duration
	// Adds the "stale-if-error" directive to the Cache-Control header.
	// Only makes sense with a CacheAge.
	StaleErrorCatalogs time.Duration
	StaleErrorMeta     time.Duration
	// Flag for indicating whether an ETag should be sent with responses and "If-None-Match" requests be answered with "304 Not Modified".
	// Only makes sense with a CacheAge.
	HandleEtagCatalogs bool
	HandleEtagMeta     bool
	// Flag for indicating whether you want to expose URL handlers for the Go profiler.
	// The URLs are be the standard ones: "/debug/pprof/...".
	Profiling bool
	// Flag for indicating whether you want to collect and expose Prometheus metrics.
	// The URL is the standard one: "/metrics".
	Metrics bool
}

// DefaultOptions is an Options object with default values.
// For fields that aren't set here the zero value is the default value.
var DefaultOptions = Options{
	BindAddr:     "localhost",
	Port:         8080,
	LoggingLevel: "info",
	LogEncoding:  "console",
}
