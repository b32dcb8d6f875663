package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManifestClone(t *testing.T) {
	// Test empty struct to make sure empty slices are nil and not slices with 0 elements.
	m := Manifest{}
	require.Equal(t, m, m.Clone())

	// Fill every field to ensure initial equality after the clone.
	m = Manifest{
		ID:          "stremio-criterion",
		Name:        "Criterion Collection",
		Description: "Lists Criterion Collection movies",
		Version:     "2.0.0",

		ResourceItems: []ResourceItem{
			{
				Name:  "catalog",
				Types: []string{"movie"},

				IDprefixes: []string{"tt"},
			},
		},

		Types: []string{"movie"},
		Catalogs: []CatalogItem{
			{
				Type: "movie",
				ID:   "criterion",
				Name: "Criterion Collection",

				Extra: []ExtraItem{
					{
						Name:         "sort",
						Options:      []string{"Year Ascending", "Year Descending"},
						OptionsLimit: 1,
					},
				},
			},
		},

		IDprefixes:   []string{"tt"},
		Background:   "https://example.com/background.jpg",
		Logo:         "https://example.com/logo.png",
		ContactEmail: "mail@example.com",
		BehaviorHints: ManifestBehaviorHints{
			Adult: true,
			P2P:   true,
		},
	}
	require.Equal(t, m, m.Clone())

	// Each scenario alters a single non-simple field, simple types are deep-copied by default.
	tests := []struct {
		name string
		f    func(m *Manifest)
	}{
		{
			name: "ID",
			f:    func(m *Manifest) { m.ID = "changed" },
		},
		{
			name: "ResourceItems.Name",
			f:    func(m *Manifest) { m.ResourceItems[0].Name = "changed" },
		},
		{
			name: "ResourceItems.Types",
			f:    func(m *Manifest) { m.ResourceItems[0].Types[0] = "changed" },
		},
		{
			name: "ResourceItems.IDprefixes",
			f:    func(m *Manifest) { m.ResourceItems[0].IDprefixes[0] = "changed" },
		},
		{
			name: "Types",
			f:    func(m *Manifest) { m.Types[0] = "changed" },
		},
		{
			name: "Catalogs.Type",
			f:    func(m *Manifest) { m.Catalogs[0].Type = "changed" },
		},
		{
			name: "Catalogs.Extra.Name",
			f:    func(m *Manifest) { m.Catalogs[0].Extra[0].Name = "changed" },
		},
		{
			name: "Catalogs.Extra.Options",
			f:    func(m *Manifest) { m.Catalogs[0].Extra[0].Options[0] = "changed" },
		},
		{
			name: "IDprefixes",
			f:    func(m *Manifest) { m.IDprefixes[0] = "changed" },
		},
		{
			name: "BehaviorHints",
			f:    func(m *Manifest) { m.BehaviorHints.Adult = false },
		},
	}

	// For each scenario, clone the original manifest, then run the scenario func, then compare.
	// We expect UNequality for each.
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m2 := m.Clone()
			test.f(&m2)
			require.NotEqual(t, m, m2)
		})
	}
}

func TestManifestCatalog(t *testing.T) {
	m := Manifest{
		Catalogs: []CatalogItem{
			{Type: "movie", ID: "criterion", Extra: []ExtraItem{{Name: "sort"}, {Name: "skip"}}},
		},
	}

	catalog, ok := m.Catalog("movie", "criterion")
	require.True(t, ok)
	require.Equal(t, []string{"sort", "skip"}, catalog.ExtraNames())

	_, ok = m.Catalog("series", "criterion")
	require.False(t, ok)
	_, ok = m.Catalog("movie", "other")
	require.False(t, ok)

	require.Nil(t, CatalogItem{}.ExtraNames())
}
