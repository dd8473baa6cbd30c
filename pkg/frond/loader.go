package frond

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
)

// Provider fetches raw template text from an external source, fallible
// per-name. HTTP semantics, file layout, and caching are the provider's
// business; the coordinator only needs this one capability.
type Provider interface {
	FetchOne(ctx context.Context, name string) (string, error)
}

// LoadResult reports the outcome of a load pass: which names were obtained
// and which failed. Every caller waiting on the same pass observes the
// identical result.
type LoadResult struct {
	Loaded []string
	Failed []string
}

// ErrNothingLoaded is returned when a load pass obtains zero sources. The
// coordinator stays unloaded so a later call can retry.
var ErrNothingLoaded = errors.New("no template sources loaded")

// LoadCoordinator deduplicates concurrent "ensure templates are available"
// requests against a Provider. Its core correctness property is
// single-flight: while a load is in flight, late callers wait on the same
// in-flight pass instead of starting a second one, so the provider is hit
// at most once per source name while the process stays loaded.
//
// Process-wide behavior comes from holding one instance at the application
// root; tests construct isolated instances with their own providers.
type LoadCoordinator struct {
	logger   *slog.Logger
	provider Provider
	names    []string
	store    *SourceStore

	mu        sync.Mutex
	loaded    bool
	attempted bool
	inflight  chan struct{}
	result    LoadResult
	loadErr   error
}

// NewLoadCoordinator creates a coordinator that loads the given template
// names from provider into store.
func NewLoadCoordinator(logger *slog.Logger, provider Provider, names []string, store *SourceStore) *LoadCoordinator {
	return &LoadCoordinator{
		logger:   logger,
		provider: provider,
		names:    slices.Clone(names),
		store:    store,
	}
}

// EnsureLoaded makes the source store ready for rendering. If a previous
// pass succeeded it returns immediately with the recorded result. If a pass
// is in flight it waits for that same pass and returns its outcome. If
// nothing is loaded or in flight, this caller becomes the loader: each name
// is fetched individually, failures are recorded per-name without aborting
// the rest, and the store is committed in one step. The coordinator stays
// loaded only if at least one source was obtained; a total failure resets
// it so a later call retries.
func (lc *LoadCoordinator) EnsureLoaded(ctx context.Context) (LoadResult, error) {
	lc.mu.Lock()
	if lc.loaded {
		result, err := lc.result, lc.loadErr
		lc.mu.Unlock()
		return result, err
	}
	if lc.inflight != nil {
		done := lc.inflight
		lc.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			// The in-flight load itself is not cancelled; this caller just
			// stops waiting for it.
			return LoadResult{}, ctx.Err()
		}
		lc.mu.Lock()
		result, err := lc.result, lc.loadErr
		lc.mu.Unlock()
		return result, err
	}

	done := make(chan struct{})
	lc.inflight = done
	lc.attempted = true
	names := slices.Clone(lc.names)
	lc.mu.Unlock()

	// The pass is shared by every waiter; detach it from the initiating
	// caller so an abandoned request cannot fail the load for the rest.
	loadCtx := context.WithoutCancel(ctx)

	fetched := make(map[string]string, len(names))
	var result LoadResult
	for _, name := range names {
		body, err := lc.provider.FetchOne(loadCtx, name)
		if err != nil {
			lc.logger.Warn("Failed to load template source", "template", name, "error", err)
			result.Failed = append(result.Failed, name)
			continue
		}
		fetched[name] = body
		result.Loaded = append(result.Loaded, name)
	}

	var loadErr error
	if len(result.Loaded) == 0 {
		loadErr = ErrNothingLoaded
		lc.logger.Error("Template load obtained no sources", "requested", len(names))
	} else {
		lc.store.SetAll(fetched)
		lc.logger.Info("Template sources loaded", "loaded", len(result.Loaded), "failed", len(result.Failed))
	}

	lc.mu.Lock()
	lc.result = result
	lc.loadErr = loadErr
	lc.loaded = len(result.Loaded) > 0
	lc.inflight = nil
	lc.mu.Unlock()
	close(done)

	return result, loadErr
}

// IsLoaded reports whether a load pass has succeeded.
func (lc *LoadCoordinator) IsLoaded() bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.loaded
}

// LoadAttempted reports whether any load pass has started.
func (lc *LoadCoordinator) LoadAttempted() bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.attempted
}

// ClearCache resets the coordinator to unloaded and drops every stored
// source, forcing the next EnsureLoaded to fetch again. The store's
// generation bump invalidates all compiled templates as a side effect.
func (lc *LoadCoordinator) ClearCache() {
	lc.mu.Lock()
	lc.loaded = false
	lc.attempted = false
	lc.result = LoadResult{}
	lc.loadErr = nil
	lc.mu.Unlock()
	lc.store.Clear()
}
