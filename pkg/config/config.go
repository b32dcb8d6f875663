package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	stremio "github.com/xybydy/stremio-criterion"
	"github.com/xybydy/stremio-criterion/pkg/catalog"
	"github.com/xybydy/stremio-criterion/pkg/store"
)

// DefaultMoviesFile is the collection file that's read when neither path nor URL are configured.
const DefaultMoviesFile = "criterion_movies.json"

// Config is the configuration of the addon service.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
	Catalog CatalogConfig `yaml:"catalog"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	BindAddr    string `yaml:"bind_addr" validate:"required"`
	Port        int    `yaml:"port" validate:"min=1,max=65535"`
	RedirectURL string `yaml:"redirect_url" validate:"omitempty,url"`
	Metrics     bool   `yaml:"metrics"`
	Profiling   bool   `yaml:"profiling"`
}

// LogConfig holds the logging settings.
type LogConfig struct {
	Level                 string `yaml:"level" validate:"oneof=debug info warn error"`
	Encoding              string `yaml:"encoding" validate:"oneof=console json"`
	DisableRequestLogging bool   `yaml:"disable_request_logging"`
	LogIPs                bool   `yaml:"log_ips" validate:"excluded_with=DisableRequestLogging"`
	LogUserAgent          bool   `yaml:"log_user_agent" validate:"excluded_with=DisableRequestLogging"`
	LogMediaName          bool   `yaml:"log_media_name" validate:"excluded_with=DisableRequestLogging"`
}

// StoreConfig defines where the collection is read from and when it's read again.
// Exactly one of Path and URL must be set.
type StoreConfig struct {
	Path    string        `yaml:"path" validate:"required_without=URL,excluded_with=URL"`
	URL     string        `yaml:"url" validate:"omitempty,url"`
	Refresh string        `yaml:"refresh" validate:"oneof=once request ttl"`
	TTL     time.Duration `yaml:"ttl" validate:"required_if=Refresh ttl,gte=0"`
	// Timeout for remote sources
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
	// Watch reloads a local file when it changes.
	Watch bool `yaml:"watch" validate:"excluded_with=URL,excluded_if=Refresh request"`
}

// CatalogConfig holds the catalog presentation and response caching settings.
type CatalogConfig struct {
	ID                 string        `yaml:"id" validate:"required"`
	Name               string        `yaml:"name" validate:"required"`
	SlugFallback       bool          `yaml:"slug_fallback"`
	RatingLinks        string        `yaml:"rating_links" validate:"oneof=none meta catalog both"`
	DefaultDescription string        `yaml:"default_description"`
	CacheAge           time.Duration `yaml:"cache_age" validate:"gte=0"`
	StaleRevalidate    time.Duration `yaml:"stale_revalidate" validate:"gte=0,excluded_without=CacheAge"`
	StaleError         time.Duration `yaml:"stale_error" validate:"gte=0,excluded_without=CacheAge"`
	ETag               bool          `yaml:"etag" validate:"excluded_without=CacheAge"`
}

// Default returns the configuration that's used for everything the config file doesn't set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			BindAddr: stremio.DefaultOptions.BindAddr,
			Port:     stremio.DefaultOptions.Port,
		},
		Log: LogConfig{
			Level:    stremio.DefaultOptions.LoggingLevel,
			Encoding: stremio.DefaultOptions.LogEncoding,
		},
		Store: StoreConfig{
			Path:    DefaultMoviesFile,
			Refresh: string(store.RefreshOnce),
			Timeout: 10 * time.Second,
		},
		Catalog: CatalogConfig{
			ID:                 catalog.DefaultOptions.CatalogID,
			Name:               catalog.DefaultOptions.CatalogName,
			SlugFallback:       catalog.DefaultOptions.SlugFallback,
			RatingLinks:        string(catalog.DefaultOptions.RatingLinks),
			DefaultDescription: catalog.DefaultOptions.DefaultDescription,
		},
	}
}

// Load reads the YAML config file at path over the defaults and validates the result.
// Environment variables like ${OMDB_API_KEY} in the file are expanded.
// An empty path leads to the validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	// Expand ~ to home directory if present
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	// A configured URL replaces the default file.
	if cfg.Store.URL != "" && cfg.Store.Path == DefaultMoviesFile {
		cfg.Store.Path = ""
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report the YAML keys instead of the Go field names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the config for invalid values and combinations.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("couldn't validate config: %w", err)
	}
	msgs := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		// Namespace is like "Config.store.path"
		_, key, _ := strings.Cut(fieldErr.Namespace(), ".")
		msg := fmt.Sprintf("%v: failed on %q", key, fieldErr.Tag())
		if fieldErr.Param() != "" {
			msg += " (" + fieldErr.Param() + ")"
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("invalid config: %v", strings.Join(msgs, "; "))
}

// Source creates the record source. client is only used for remote sources and can be nil.
func (c StoreConfig) Source(client *http.Client) store.Source {
	if c.URL != "" {
		return store.NewRemoteSource(c.URL, c.Timeout, client)
	}
	return store.FileSource{Path: c.Path}
}

// Options returns the store options.
func (c StoreConfig) Options() store.Options {
	return store.Options{
		Refresh: store.RefreshPolicy(c.Refresh),
		TTL:     c.TTL,
	}
}

// ProjectorOptions returns the catalog projector options.
func (c CatalogConfig) ProjectorOptions() catalog.Options {
	return catalog.Options{
		CatalogID:          c.ID,
		CatalogName:        c.Name,
		SlugFallback:       c.SlugFallback,
		RatingLinks:        catalog.RatingLinkPolicy(c.RatingLinks),
		DefaultDescription: c.DefaultDescription,
	}
}

// AddonOptions returns the addon server options. The catalog caching settings apply to meta responses as well.
func (c Config) AddonOptions(logger *zap.Logger) stremio.Options {
	return stremio.Options{
		BindAddr:                c.Server.BindAddr,
		Port:                    c.Server.Port,
		Logger:                  logger,
		RedirectURL:             c.Server.RedirectURL,
		DisableRequestLogging:   c.Log.DisableRequestLogging,
		LogIPs:                  c.Log.LogIPs,
		LogUserAgent:            c.Log.LogUserAgent,
		LogMediaName:            c.Log.LogMediaName,
		CacheAgeCatalogs:        c.Catalog.CacheAge,
		CacheAgeMeta:            c.Catalog.CacheAge,
		StaleRevalidateCatalogs: c.Catalog.StaleRevalidate,
		StaleRevalidateMeta:     c.Catalog.StaleRevalidate,
		StaleErrorCatalogs:      c.Catalog.StaleError,
		StaleErrorMeta:          c.Catalog.StaleError,
		HandleEtagCatalogs:      c.Catalog.ETag,
		HandleEtagMeta:          c.Catalog.ETag,
		Profiling:               c.Server.Profiling,
		Metrics:                 c.Server.Metrics,
	}
}
