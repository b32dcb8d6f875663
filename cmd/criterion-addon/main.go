package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	stremio "github.com/xybydy/stremio-criterion"
	"github.com/xybydy/stremio-criterion/pkg/catalog"
	"github.com/xybydy/stremio-criterion/pkg/config"
	"github.com/xybydy/stremio-criterion/pkg/store"
)

var version = "2.0.0"

var (
	configPath = flag.String("config", "", "Path to the YAML config file. Without one the defaults are used.")
	envFile    = flag.String("envFile", ".env", "Path to a .env file whose variables are loaded before the config file is read. A missing file is ignored.")
	bindAddr   = flag.String("bindAddr", "", "Local interface address to bind to. \"0.0.0.0\" binds to all interfaces. Overrides the config file.")
	port       = flag.Int("port", 0, "Port to listen on. Overrides the config file.")
	logLevel   = flag.String("logLevel", "", "Log level to show only logs with the given and more severe levels. Can be \"debug\", \"info\", \"warn\", \"error\". Overrides the config file.")
	moviesFile = flag.String("moviesFile", "", "Path to the collection JSON file. Overrides the config file.")
	moviesURL  = flag.String("moviesURL", "", "URL of the collection JSON file. Overrides the config file.")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		exit("Couldn't load .env file", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		exit("Couldn't load config", err)
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		exit("Invalid command line flags", err)
	}

	logger, err := stremio.NewLogger(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		exit("Couldn't create logger", err)
	}
	logger.Info("Starting Criterion addon", zap.String("version", version))

	// Cancelled when the addon shuts down, which stops the file watcher.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	movies, err := store.New(cfg.Store.Source(nil), cfg.Store.Options(), logger)
	if err != nil {
		logger.Fatal("Couldn't create record store", zap.Error(err))
	}
	if cfg.Store.Options().Refresh != store.RefreshPerRequest {
		movies.Refresh(ctx)
	}
	if cfg.Store.Watch {
		if err := movies.Watch(ctx, store.DefaultDebounce); err != nil {
			logger.Fatal("Couldn't watch collection file", zap.Error(err))
		}
	}

	projector, err := catalog.NewProjector(movies, cfg.Catalog.ProjectorOptions(), logger)
	if err != nil {
		logger.Fatal("Couldn't create catalog projector", zap.Error(err))
	}

	catalogHandlers := map[string]stremio.CatalogHandler{catalog.MovieType: projector.Catalog}
	metaHandlers := map[string]stremio.MetaHandler{catalog.MovieType: projector.Meta}
	addon, err := stremio.NewAddon(projector.Manifest(version), catalogHandlers, metaHandlers, cfg.AddonOptions(logger))
	if err != nil {
		logger.Fatal("Couldn't create addon", zap.Error(err))
	}
	addon.AddEndpoint(fiber.MethodGet, "/criterion-movies", createMoviesHandler(movies, logger))

	stoppingChan := make(chan bool, 1)
	go func() {
		<-stoppingChan
		cancel()
	}()
	addon.Run(stoppingChan, nil)
}

func applyFlags(cfg *config.Config) {
	if *bindAddr != "" {
		cfg.Server.BindAddr = *bindAddr
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *moviesFile != "" {
		cfg.Store.Path = *moviesFile
		cfg.Store.URL = ""
	}
	if *moviesURL != "" {
		cfg.Store.URL = *moviesURL
		cfg.Store.Path = ""
		cfg.Store.Watch = false
	}
}

// createMoviesHandler serves the whole collection as JSON array.
func createMoviesHandler(movies *store.Store, logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		logger.Debug("moviesHandler called")
		return c.JSON(movies.Records(c.Context()))
	}
}

func exit(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%v: %v\n", msg, err)
	os.Exit(1)
}
