package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	stremio "github.com/xybydy/stremio-criterion"
	"github.com/xybydy/stremio-criterion/pkg/config"
	"github.com/xybydy/stremio-criterion/pkg/scraper"
)

var (
	listURL     = flag.String("url", scraper.DefaultListURL, "URL of the Criterion list page to scrape")
	outFile     = flag.String("out", config.DefaultMoviesFile, "Path of the collection JSON file to write")
	envFile     = flag.String("envFile", ".env", "Path to a .env file whose variables are loaded on start. A missing file is ignored.")
	omdbKey     = flag.String("omdbKey", "", "OMDb API key for looking up IMDb IDs and details. Defaults to the OMDB_API_KEY environment variable. Without a key the records keep their title slugs as IDs.")
	omdbURL     = flag.String("omdbURL", scraper.DefaultOMDbURL, "OMDb API endpoint")
	concurrency = flag.Int("concurrency", 4, "Number of concurrent OMDb lookups")
	timeout     = flag.Duration("timeout", 30*time.Second, "Timeout for fetching the list page and for each OMDb lookup")
	logLevel    = flag.String("logLevel", "info", "Log level to show only logs with the given and more severe levels. Can be \"debug\", \"info\", \"warn\", \"error\".")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Couldn't load .env file: %v\n", err)
		os.Exit(1)
	}
	logger, err := stremio.NewLogger(*logLevel, "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Couldn't create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: *timeout}

	var omdb scraper.Lookuper
	if *omdbKey == "" {
		*omdbKey = os.Getenv("OMDB_API_KEY")
	}
	if *omdbKey != "" {
		if omdb, err = scraper.NewOMDbClient(*omdbKey, *omdbURL, client); err != nil {
			logger.Fatal("Couldn't create OMDb client", zap.Error(err))
		}
	} else {
		logger.Warn("No OMDb API key set, records won't have IMDb IDs")
	}

	s := scraper.New(client, omdb, scraper.Options{Concurrency: *concurrency, Timeout: *timeout}, logger)
	records, err := s.Run(ctx, *listURL)
	if err != nil {
		logger.Fatal("Scraping failed", zap.Error(err))
	}
	if err := scraper.WriteFile(*outFile, records); err != nil {
		logger.Fatal("Couldn't write collection file", zap.Error(err))
	}
	logger.Info("Scraping complete", zap.Int("count", len(records)), zap.String("file", *outFile))
}
