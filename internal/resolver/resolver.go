// Package resolver locates companion artifacts by the device location
// recorded in another artifact.
package resolver

import (
	"context"
	"io"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/oatdump/internal/storage"
	"github.com/oatdump/pkg/compression"
	apperrors "github.com/oatdump/pkg/errors"
	"github.com/oatdump/pkg/telemetry"
	"github.com/oatdump/pkg/utils"
)

// ErrNotFound is matched by every lookup failure caused by a missing artifact.
var ErrNotFound = apperrors.ErrNotFound

// prefetchWorkers bounds concurrent downloads during Prefetch.
const prefetchWorkers = 4

// Resolver maps device locations onto a storage backend. A host prefix is
// prepended to every location, so /system/framework/core.jar is looked up as
// <prefix>/system/framework/core.jar. Compressed artifacts are decoded
// transparently.
type Resolver struct {
	store      storage.Storage
	hostPrefix string
	logger     utils.Logger

	mu    sync.Mutex
	cache map[string][]byte
}

// New creates a Resolver over store.
func New(store storage.Storage, hostPrefix string, logger utils.Logger) *Resolver {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &Resolver{
		store:      store,
		hostPrefix: strings.TrimRight(hostPrefix, "/"),
		logger:     logger,
		cache:      make(map[string][]byte),
	}
}

// Translate returns the storage key of location.
func (r *Resolver) Translate(location string) string {
	return r.hostPrefix + location
}

// Resolve loads the artifact at location.
func (r *Resolver) Resolve(ctx context.Context, location string) (data []byte, err error) {
	key := r.Translate(location)
	if data, ok := r.cached(key); ok {
		return data, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "oatdump.resolve",
		attribute.String("artifact.location", location),
		attribute.String("artifact.key", key))
	defer func() { telemetry.EndSpan(span, err) }()

	rc, err := r.store.Download(ctx, key)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.CodeDownloadError, "resolve "+key, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDownloadError, "read "+key, err)
	}
	if data, err = compression.Decompress(raw); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArtifact, "decompress "+key, err)
	}
	r.logger.Debug("resolved %s as %s (%d bytes)", location, key, len(data))
	r.mu.Lock()
	r.cache[key] = data
	r.mu.Unlock()
	return data, nil
}

func (r *Resolver) cached(key string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.cache[key]
	return data, ok
}

// Prefetch resolves locations concurrently so later Resolve calls are served
// from the cache. Missing artifacts are skipped; the first other failure is
// returned after the remaining downloads stop.
func (r *Resolver) Prefetch(ctx context.Context, locations []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchWorkers)

	seen := make(map[string]bool, len(locations))
	for _, loc := range locations {
		if seen[loc] {
			continue
		}
		seen[loc] = true
		if _, ok := r.cached(r.Translate(loc)); ok {
			continue
		}
		g.Go(func() error {
			_, err := r.Resolve(ctx, loc)
			if apperrors.IsNotFound(err) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
