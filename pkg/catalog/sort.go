package catalog

import (
	"cmp"
	"slices"
	"strings"

	"github.com/xybydy/stremio-criterion/pkg/store"
)

// SortKey is the order of a catalog. Its value is the label Stremio shows in the sort selection.
type SortKey string

const (
	YearAsc     SortKey = "Year Ascending"
	YearDesc    SortKey = "Year Descending"
	RatingAsc   SortKey = "Rating Ascending"
	RatingDesc  SortKey = "Rating Descending"
	RuntimeAsc  SortKey = "Runtime Ascending"
	RuntimeDesc SortKey = "Runtime Descending"
)

// DefaultSortKey is used when no or an unknown sort key is requested.
const DefaultSortKey = YearDesc

var sortKeys = []SortKey{YearAsc, YearDesc, RatingAsc, RatingDesc, RuntimeAsc, RuntimeDesc}

// SortKeys returns all sort keys in the order they're offered in the manifest.
func SortKeys() []SortKey {
	return slices.Clone(sortKeys)
}

// sortKeyAliases maps normalized identifiers like "yearasc" (from "YearAsc" or "year_asc") to their key.
var sortKeyAliases = map[string]SortKey{
	"yearasc":     YearAsc,
	"yeardesc":    YearDesc,
	"ratingasc":   RatingAsc,
	"ratingdesc":  RatingDesc,
	"runtimeasc":  RuntimeAsc,
	"runtimedesc": RuntimeDesc,
}

// ParseSortKey accepts the labels ("Year Ascending"), identifiers ("YearAsc") and snake case identifiers ("year_asc").
// Empty or unknown values lead to DefaultSortKey and false.
func ParseSortKey(s string) (SortKey, bool) {
	s = strings.TrimSpace(s)
	for _, key := range sortKeys {
		if strings.EqualFold(s, string(key)) {
			return key, true
		}
	}
	normalized := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	if key, ok := sortKeyAliases[normalized]; ok {
		return key, true
	}
	return DefaultSortKey, false
}

// Sort returns a sorted copy of the records. The sort is stable, so records with equal values
// keep their collection order in both directions. Unknown keys sort like DefaultSortKey.
func Sort(records []store.Record, key SortKey) []store.Record {
	key, _ = ParseSortKey(string(key))

	var compare func(a, b store.Record) int
	switch key {
	case YearAsc, YearDesc:
		compare = func(a, b store.Record) int { return cmp.Compare(a.YearValue(), b.YearValue()) }
	case RatingAsc, RatingDesc:
		compare = func(a, b store.Record) int { return cmp.Compare(a.RatingValue(), b.RatingValue()) }
	case RuntimeAsc, RuntimeDesc:
		compare = func(a, b store.Record) int { return cmp.Compare(a.RuntimeMinutes(), b.RuntimeMinutes()) }
	}
	if key == YearDesc || key == RatingDesc || key == RuntimeDesc {
		asc := compare
		compare = func(a, b store.Record) int { return asc(b, a) }
	}

	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, compare)
	return sorted
}
