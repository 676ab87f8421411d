// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NimbusMQ Contributors

package acl

import (
	"context"
	"crypto/rand"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/nimbusmq/nimbus/internal/authz/acl/types"
)

// Default retry configuration for watch-triggered reloads.
const (
	defaultRetryInitial = 100 * time.Millisecond
	defaultRetryMax     = uint64(5)
)

// Source supplies the raw rules of record. Implementations live in the
// source subpackage; persistence of the rules themselves is out of
// scope here.
type Source interface {
	Load(ctx context.Context) ([]types.RawRule, error)
}

// Watcher is an optional Source capability: it invokes onChange
// whenever the underlying rule data may have changed. Registration
// returns immediately; the watch ends when ctx is cancelled.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// Snapshot is one immutable published rule set. Readers share it
// without locking; it is replaced wholesale, never mutated.
type Snapshot struct {
	Rules     *RuleSet
	Revision  ulid.ULID
	CreatedAt time.Time
}

// Cache holds the live rule-set snapshot and rebuilds it from the
// source on reload. A failed reload leaves the previous snapshot
// untouched and live.
type Cache struct {
	source      Source
	richActions bool

	// reloadMu serializes writers; mu guards only the snapshot pointer
	// swap so readers never block on a reload in progress.
	reloadMu sync.Mutex
	mu       sync.RWMutex
	snapshot *Snapshot

	// lastUpdate is the Unix nanosecond timestamp of the last
	// successful reload; zero means never loaded.
	lastUpdate atomic.Int64

	wg sync.WaitGroup
}

// NewCache creates a cache over the given source. The snapshot starts
// empty; call Reload before serving authorization decisions.
func NewCache(source Source, richActions bool) *Cache {
	return &Cache{
		source:      source,
		richActions: richActions,
		snapshot: &Snapshot{
			Rules:     &RuleSet{richActions: richActions},
			CreatedAt: time.Now(),
		},
	}
}

// Snapshot returns the current published snapshot. It is safe for
// unbounded concurrent callers.
func (c *Cache) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Ready reports whether at least one reload has succeeded.
func (c *Cache) Ready() bool {
	return c.lastUpdate.Load() != 0
}

// Reload loads the raw rules from the source, compiles them
// all-or-nothing, and atomically publishes the new snapshot. On any
// failure the previous snapshot remains authoritative and the error
// carries the precise failing reason and value.
func (c *Cache) Reload(ctx context.Context) error {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	raws, err := c.source.Load(ctx)
	if err != nil {
		reloadFailures.Inc()
		return oops.Wrapf(err, "loading acl rules")
	}

	rules, err := CompileAll(raws, c.richActions)
	if err != nil {
		reloadFailures.Inc()
		return err
	}

	snap := &Snapshot{
		Rules:     rules,
		Revision:  newRevision(),
		CreatedAt: time.Now(),
	}

	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()

	now := time.Now()
	c.lastUpdate.Store(now.UnixNano())
	reloadTimestamp.Set(float64(now.Unix()))
	ruleCount.Set(float64(rules.Len()))

	slog.Info("acl rule set published",
		"revision", snap.Revision.String(),
		"rules", rules.Len(),
		"rich_actions", c.richActions)
	return nil
}

// StartWatch registers for change notifications if the source supports
// them and reloads on each one, retrying transient load failures with
// exponential backoff. Rule validation failures are not retried: the
// data is wrong, not the transport, so the previous snapshot stays
// live until the source changes again.
func (c *Cache) StartWatch(ctx context.Context) error {
	watcher, ok := c.source.(Watcher)
	if !ok {
		return nil
	}
	return watcher.Watch(ctx, func() {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.reloadWithRetry(ctx)
		}()
	})
}

// Wait blocks until in-flight watch reloads have finished.
func (c *Cache) Wait() {
	c.wg.Wait()
}

func (c *Cache) reloadWithRetry(ctx context.Context) {
	backoff := retry.WithMaxRetries(defaultRetryMax, retry.NewExponential(defaultRetryInitial))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		reloadErr := c.Reload(ctx)
		if reloadErr == nil {
			return nil
		}
		if oopsErr, ok := oops.AsOops(reloadErr); ok {
			if code, ok := oopsErr.Code().(string); ok && code == CodeBadACLRule {
				return reloadErr
			}
		}
		return retry.RetryableError(reloadErr)
	})
	if err != nil {
		slog.Error("acl reload failed; previous rule set remains active",
			"error", err.Error())
	}
}

var (
	revisionEntropy = ulid.Monotonic(rand.Reader, 0)
	revisionMu      sync.Mutex
)

// newRevision generates a monotonic ULID identifying one published
// snapshot, for logs and admin display.
func newRevision() ulid.ULID {
	revisionMu.Lock()
	defer revisionMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), revisionEntropy)
}
