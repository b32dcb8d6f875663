package store

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/cespare/xxhash/v2"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// RefreshPolicy defines when the Store reads its source again.
type RefreshPolicy string

const (
	// RefreshOnce reads the source once and keeps the result for the process lifetime
	// (unless Refresh is called, for example by Watch).
	RefreshOnce RefreshPolicy = "once"
	// RefreshPerRequest reads the source on every call of Records.
	RefreshPerRequest RefreshPolicy = "request"
	// RefreshTTL keeps the result for Options.TTL and then reads the source again.
	RefreshTTL RefreshPolicy = "ttl"
)

const snapshotKey = "records"

// Options configures a Store.
type Options struct {
	Refresh RefreshPolicy
	// Only used with RefreshTTL.
	TTL time.Duration
}

// Store is the collection of movie records, read from a Source.
// It never fails: an unavailable or malformed source leads to an empty collection and a log message.
//
// The returned slices are shared between callers and must not be modified.
type Store struct {
	source Source
	opts   Options
	logger *zap.Logger

	// snapshots holds the current record list for the cached refresh policies.
	// Values are only ever replaced as a whole.
	snapshots *cache.Cache
	group     singleflight.Group
	// checksum of the source content the current snapshot was parsed from
	checksum atomic.Uint64
}

// New creates a Store. It doesn't read the source yet.
func New(source Source, opts Options, logger *zap.Logger) (*Store, error) {
	switch {
	case source == nil:
		return nil, errors.New("no source was passed")
	case opts.Refresh == "":
		opts.Refresh = RefreshOnce
	case opts.Refresh == RefreshTTL && opts.TTL <= 0:
		return nil, errors.New("the TTL refresh policy requires a positive TTL")
	case opts.Refresh != RefreshOnce && opts.Refresh != RefreshPerRequest && opts.Refresh != RefreshTTL:
		return nil, fmt.Errorf("unknown refresh policy %q", opts.Refresh)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		source:    source,
		opts:      opts,
		logger:    logger.With(zap.Stringer("source", source)),
		snapshots: cache.New(cache.NoExpiration, 0),
	}, nil
}

// Load reads and parses the source, independent of the refresh policy.
// Failures are logged and lead to an empty (non-nil) result.
func (s *Store) Load(ctx context.Context) []Record {
	records, _ := s.load(ctx, false)
	return records
}

// Records returns the current collection according to the refresh policy.
func (s *Store) Records(ctx context.Context) []Record {
	if s.opts.Refresh == RefreshPerRequest {
		return s.Load(ctx)
	}
	if records, ok := s.snapshots.Get(snapshotKey); ok {
		return records.([]Record)
	}
	return s.Refresh(ctx)
}

// Refresh reads the source and replaces the cached collection.
// Concurrent calls share a single read.
func (s *Store) Refresh(ctx context.Context) []Record {
	// The read is shared, so one caller's cancellation mustn't abort it for the others.
	// Remote sources still apply their own timeout.
	ctx = context.WithoutCancel(ctx)
	records, _, _ := s.group.Do(snapshotKey, func() (any, error) {
		records, checksum := s.load(ctx, true)
		if s.opts.Refresh != RefreshPerRequest {
			s.snapshots.Set(snapshotKey, records, s.expiration())
			s.checksum.Store(checksum)
		}
		return records, nil
	})
	return records.([]Record)
}

func (s *Store) expiration() time.Duration {
	if s.opts.Refresh == RefreshTTL {
		return s.opts.TTL
	}
	return cache.NoExpiration
}

// load reads the source and parses it, unless reuse is true and the content's checksum
// matches the one of the cached snapshot.
func (s *Store) load(ctx context.Context, reuse bool) ([]Record, uint64) {
	start := time.Now()
	defer metrics.GetOrCreateHistogram("criterion_store_load_duration_seconds").UpdateDuration(start)

	data, err := s.source.Read(ctx)
	if err != nil {
		s.logger.Error("Couldn't read records, serving an empty collection", zap.Error(err))
		metrics.GetOrCreateCounter(`criterion_store_loads_total{result="unavailable"}`).Inc()
		return []Record{}, 0
	}

	checksum := xxhash.Sum64(data)
	if reuse && checksum == s.checksum.Load() {
		if cached, ok := s.snapshots.Get(snapshotKey); ok {
			s.logger.Debug("Record source unchanged")
			metrics.GetOrCreateCounter(`criterion_store_loads_total{result="unchanged"}`).Inc()
			return cached.([]Record), checksum
		}
	}

	records, err := Parse(data, s.logger)
	if err != nil {
		s.logger.Error("Couldn't parse records, serving an empty collection", zap.Error(err))
		metrics.GetOrCreateCounter(`criterion_store_loads_total{result="malformed"}`).Inc()
		return []Record{}, 0
	}
	s.logger.Info("Loaded records", zap.Int("count", len(records)), zap.Duration("duration", time.Since(start)))
	metrics.GetOrCreateCounter(`criterion_store_loads_total{result="ok"}`).Inc()
	return records, checksum
}
