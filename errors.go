package stremio

import (
	"errors"
)

var (
	// ErrBadRequest signals that the client sent a request the addon doesn't support,
	// for example a catalog ID that isn't in the manifest.
	// It leads to a "400 Bad Request" response.
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound signals that the catalog/meta was not found.
	// It leads to a "404 Not Found" response.
	ErrNotFound = errors.New("not found")
)
