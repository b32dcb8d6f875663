package main

import (
	"context"
	"flag"
	"fmt"

	stremio "github.com/xybydy/stremio-criterion"
	"github.com/xybydy/stremio-criterion/pkg/catalog"
	"github.com/xybydy/stremio-criterion/pkg/store"
)

// Addon for load testing the catalog and meta endpoints with a generated collection,
// for example with `hey -n 10000 http://localhost:7000/catalog/movie/criterion/sort=Rating%20Descending.json`.

var size = flag.Int("size", 2000, "Number of generated records")

type generatedRecords []store.Record

func (g generatedRecords) Records(_ context.Context) []store.Record {
	return g
}

func generate(n int) generatedRecords {
	records := make(generatedRecords, n)
	for i := range records {
		records[i] = store.Record{
			ID:         fmt.Sprintf("tt%07d", i+1),
			Title:      fmt.Sprintf("Film %d", i+1),
			Poster:     fmt.Sprintf("https://images.metahub.space/poster/small/tt%07d/img", i+1),
			Year:       store.Text(fmt.Sprint(1920 + i%100)),
			Runtime:    store.Text(fmt.Sprintf("%d min", 60+i%150)),
			IMDbRating: store.Text(fmt.Sprintf("%.1f", float64(i%100)/10)),
			Genre:      store.List{"Drama", "Noir"},
			Cast:       store.List{"Actor One", "Actor Two", "Actor Three"},
			Director:   "Director",
		}
	}
	return records
}

func main() {
	flag.Parse()

	projector, err := catalog.NewProjector(generate(*size), catalog.DefaultOptions, nil)
	if err != nil {
		panic(err)
	}

	catalogHandlers := map[string]stremio.CatalogHandler{catalog.MovieType: projector.Catalog}
	metaHandlers := map[string]stremio.MetaHandler{catalog.MovieType: projector.Meta}

	addon, err := stremio.NewAddon(projector.Manifest("1.0.0"), catalogHandlers, metaHandlers, stremio.Options{BindAddr: "0.0.0.0", Port: 7000, DisableRequestLogging: true})
	if err != nil {
		panic(err)
	}

	addon.Run(nil, nil)
}
