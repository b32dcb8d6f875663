package stremio

import (
	"net/url"
	"strings"
)

// parseExtras parses the extra parameters of a catalog request.
// Stremio sends them as an additional path segment like "sort=Year%20Descending.json",
// or "genre=Drama&skip=100.json" for multiple parameters.
func parseExtras(extras string) (url.Values, error) {
	extras = strings.TrimSuffix(extras, ".json")
	if extras == "" {
		return url.Values{}, nil
	}
	return url.ParseQuery(extras)
}
