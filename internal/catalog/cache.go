package catalog

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ironsheep/openrouter-mcp/internal/logging"
	"github.com/ironsheep/openrouter-mcp/internal/openrouter"
)

// DefaultTTL is how long a fetched catalog is served before a refresh.
const DefaultTTL = time.Hour

// Lister fetches the raw model listing. *openrouter.Client satisfies it.
type Lister interface {
	ListModels(ctx context.Context) ([]openrouter.Model, error)
}

// snapshot is an immutable catalog generation.
type snapshot struct {
	models    []Descriptor
	byID      map[string]int
	fetchedAt time.Time
}

// Cache holds the most recent model catalog.
//
// Reads never observe a partially built catalog: every refresh builds a new
// snapshot and swaps the pointer. Only one refresh runs at a time; while it
// does, other readers get the expired catalog instead of waiting. With an
// empty cache they wait for the first fetch.
//
// Cache is safe for concurrent use.
type Cache struct {
	lister Lister
	ttl    time.Duration
	log    *logging.Logger
	now    func() time.Time

	current   atomic.Pointer[snapshot]
	refreshMu sync.Mutex
}

// NewCache creates an empty cache. A non-positive ttl uses DefaultTTL.
func NewCache(lister Lister, ttl time.Duration, log *logging.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Cache{
		lister: lister,
		ttl:    ttl,
		log:    log.Named("catalog"),
		now:    time.Now,
	}
}

// Models returns the current catalog, refreshing it first if it is empty or
// older than the TTL.
//
// When a refresh fails and an older catalog exists, the older catalog is
// returned and the failure is only logged. With nothing cached, the fetch
// error is returned.
func (c *Cache) Models(ctx context.Context) ([]Descriptor, error) {
	snap, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(snap.models), nil
}

// GetByID looks up a model by exact id.
func (c *Cache) GetByID(ctx context.Context, id string) (Descriptor, bool, error) {
	snap, err := c.get(ctx)
	if err != nil {
		return Descriptor{}, false, err
	}
	i, ok := snap.byID[id]
	if !ok {
		return Descriptor{}, false, nil
	}
	return snap.models[i], true, nil
}

// IsValid reports whether id names a model in the catalog.
func (c *Cache) IsValid(ctx context.Context, id string) (bool, error) {
	_, ok, err := c.GetByID(ctx, id)
	return ok, err
}

// Invalidate marks the cached catalog as expired. The stale catalog is
// kept so it can still be served if the next refresh fails.
func (c *Cache) Invalidate() {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	if snap := c.current.Load(); snap != nil {
		expired := *snap
		expired.fetchedAt = time.Time{}
		c.current.Store(&expired)
	}
}

// FetchedAt reports when the cached catalog was fetched, zero if never.
func (c *Cache) FetchedAt() time.Time {
	if snap := c.current.Load(); snap != nil {
		return snap.fetchedAt
	}
	return time.Time{}
}

func (c *Cache) fresh(snap *snapshot) bool {
	return snap != nil && c.now().Sub(snap.fetchedAt) < c.ttl
}

func (c *Cache) get(ctx context.Context) (*snapshot, error) {
	snap := c.current.Load()
	if c.fresh(snap) {
		return snap, nil
	}

	if snap == nil {
		c.refreshMu.Lock()
	} else if !c.refreshMu.TryLock() {
		// A refresh is already in flight; the expired catalog stays valid
		// until it lands.
		return snap, nil
	}
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	stale := c.current.Load()
	if c.fresh(stale) {
		return stale, nil
	}

	started := c.now()
	raw, err := c.lister.ListModels(ctx)
	if err != nil {
		if stale != nil {
			c.log.Warn("model catalog refresh failed, serving cached catalog",
				logging.Error(err),
				logging.Int("cached_models", len(stale.models)),
			)
			return stale, nil
		}
		return nil, fmt.Errorf("failed to fetch model catalog: %w", err)
	}

	next := &snapshot{
		models:    make([]Descriptor, 0, len(raw)),
		byID:      make(map[string]int, len(raw)),
		fetchedAt: c.now(),
	}
	for _, m := range raw {
		if _, dup := next.byID[m.ID]; dup {
			continue
		}
		next.byID[m.ID] = len(next.models)
		next.models = append(next.models, FromAPI(m))
	}
	c.current.Store(next)

	c.log.Debug("model catalog refreshed",
		logging.Int("models", len(next.models)),
		logging.Duration("took", c.now().Sub(started)),
	)
	return next, nil
}
