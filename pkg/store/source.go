package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

var (
	// ErrSourceUnavailable signals that the backing file or URL couldn't be read.
	ErrSourceUnavailable = errors.New("record source unavailable")
	// ErrMalformedSource signals that the source content isn't a JSON array of objects.
	ErrMalformedSource = errors.New("malformed record source")
)

// maxSourceSize limits how much of a remote response is read.
const maxSourceSize = 32 << 20

// Source provides the raw bytes of the collection.
type Source interface {
	Read(ctx context.Context) ([]byte, error)
	String() string
}

// FileSource reads the collection from a local file.
type FileSource struct {
	Path string
}

// Read implements Source.
func (s FileSource) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return data, nil
}

func (s FileSource) String() string {
	return "file://" + s.Path
}

// RemoteSource fetches the collection via HTTP GET.
type RemoteSource struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// NewRemoteSource creates a RemoteSource. Every Read is bounded by timeout.
// A nil client leads to http.DefaultClient being used.
func NewRemoteSource(url string, timeout time.Duration, client *http.Client) *RemoteSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteSource{
		url:     url,
		client:  client,
		timeout: timeout,
	}
}

// Read implements Source.
func (s *RemoteSource) Read(ctx context.Context) ([]byte, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't create request: %w", ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("%w: bad HTTP response status: %v", ErrSourceUnavailable, res.Status)
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, maxSourceSize))
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't read response body: %w", ErrSourceUnavailable, err)
	}
	return data, nil
}

func (s *RemoteSource) String() string {
	return s.url
}
