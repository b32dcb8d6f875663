package types

// Manifest describes the capabilities of the addon.
// See https://github.com/Stremio/stremio-addon-sdk/blob/f6f1f2a8b627b9d4f2c62b003b251d98adadbebe/docs/api/responses/manifest.md
type Manifest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// Note: Stremio also accepts plain resource names, but Go can only (de-)serialize one shape per field.
	ResourceItems []ResourceItem `json:"resources,omitempty"`

	Types    []string      `json:"types"` // This addon only serves "movie"
	Catalogs []CatalogItem `json:"catalogs"`

	// Optional
	IDprefixes    []string              `json:"idPrefixes,omitempty"`
	Background    string                `json:"background,omitempty"` // URL
	Logo          string                `json:"logo,omitempty"`       // URL
	ContactEmail  string                `json:"contactEmail,omitempty"`
	BehaviorHints ManifestBehaviorHints `json:"behaviorHints,omitempty"`
}

// Clone returns a deep copy of m.
// We're not using one of the deep copy libraries because only few are maintained and even they have issues.
func (m Manifest) Clone() Manifest {
	var resourceItems []ResourceItem
	if m.ResourceItems != nil {
		resourceItems = make([]ResourceItem, len(m.ResourceItems))
		for i, resourceItem := range m.ResourceItems {
			resourceItems[i] = resourceItem.Clone()
		}
	}

	var catalogs []CatalogItem
	if m.Catalogs != nil {
		catalogs = make([]CatalogItem, len(m.Catalogs))
		for i, catalog := range m.Catalogs {
			catalogs[i] = catalog.Clone()
		}
	}

	return Manifest{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Version:     m.Version,

		ResourceItems: resourceItems,

		Types:    cloneStrings(m.Types),
		Catalogs: catalogs,

		IDprefixes:    cloneStrings(m.IDprefixes),
		Background:    m.Background,
		Logo:          m.Logo,
		ContactEmail:  m.ContactEmail,
		BehaviorHints: m.BehaviorHints,
	}
}

// Catalog returns the catalog with the given type and ID.
func (m Manifest) Catalog(typ, id string) (CatalogItem, bool) {
	for _, catalog := range m.Catalogs {
		if catalog.Type == typ && catalog.ID == id {
			return catalog, true
		}
	}
	return CatalogItem{}, false
}

type ManifestBehaviorHints struct {
	// Note: Must include `omitempty`, otherwise it will be included if this struct is used in another one, even if the field of the containing struct is marked as `omitempty`
	Adult bool `json:"adult,omitempty"`
	P2P   bool `json:"p2p,omitempty"`
}

type ResourceItem struct {
	Name  string   `json:"name"`
	Types []string `json:"types"`

	// Optional
	IDprefixes []string `json:"idPrefixes,omitempty"`
}

func (ri ResourceItem) Clone() ResourceItem {
	return ResourceItem{
		Name:  ri.Name,
		Types: cloneStrings(ri.Types),

		IDprefixes: cloneStrings(ri.IDprefixes),
	}
}

// CatalogItem represents a catalog.
type CatalogItem struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`

	// Optional
	Extra []ExtraItem `json:"extra,omitempty"`
}

func (ci CatalogItem) Clone() CatalogItem {
	var extras []ExtraItem
	if ci.Extra != nil {
		extras = make([]ExtraItem, len(ci.Extra))
		for i, extra := range ci.Extra {
			extras[i] = extra.Clone()
		}
	}

	return CatalogItem{
		Type: ci.Type,
		ID:   ci.ID,
		Name: ci.Name,

		Extra: extras,
	}
}

// ExtraNames returns the names of all extra parameters the catalog declares.
func (ci CatalogItem) ExtraNames() []string {
	if len(ci.Extra) == 0 {
		return nil
	}
	names := make([]string, len(ci.Extra))
	for i, extra := range ci.Extra {
		names[i] = extra.Name
	}
	return names
}

// ExtraItem is an extra request parameter a catalog supports, for example "sort".
type ExtraItem struct {
	Name string `json:"name"`

	// Optional
	IsRequired   bool     `json:"isRequired,omitempty"`
	Options      []string `json:"options,omitempty"`
	OptionsLimit int      `json:"optionsLimit,omitempty"`
}

func (ei ExtraItem) Clone() ExtraItem {
	return ExtraItem{
		Name: ei.Name,

		IsRequired:   ei.IsRequired,
		Options:      cloneStrings(ei.Options),
		OptionsLimit: ei.OptionsLimit,
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}
