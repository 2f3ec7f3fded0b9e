package directory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lcabon/resq/core/logger"
	"github.com/lcabon/resq/core/model"
)

// Source is the upstream the cache refreshes from, typically a broker
// discovery round.
type Source interface {
	Discover(ctx context.Context) ([]model.ResourceCandidate, error)
}

// CachedDirectory serves listings from an in-memory snapshot refreshed
// on an interval, so ranking never waits on a discovery round-trip.
type CachedDirectory struct {
	source   Source
	interval time.Duration
	log      logger.Logger

	mu        sync.RWMutex
	snapshot  map[string]model.ResourceCandidate
	refreshed time.Time

	started bool
	stop    chan struct{}
	done    chan struct{}
}

func NewCachedDirectory(source Source, interval time.Duration, log logger.Logger) *CachedDirectory {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &CachedDirectory{
		source:   source,
		interval: interval,
		log:      log,
		snapshot: make(map[string]model.ResourceCandidate),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start performs an initial discovery then refreshes in the background
// until Close.
func (d *CachedDirectory) Start(ctx context.Context) error {
	if err := d.Refresh(ctx); err != nil {
		return fmt.Errorf("initial discovery: %w", err)
	}
	d.started = true
	go d.loop()
	return nil
}

func (d *CachedDirectory) loop() {
	defer close(d.done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), d.interval)
			if err := d.Refresh(ctx); err != nil {
				d.log.Warnf("resource discovery refresh failed: %v", err)
			}
			cancel()
		}
	}
}

// Refresh replaces the snapshot with a fresh discovery round. A failed
// round leaves the previous snapshot in place.
func (d *CachedDirectory) Refresh(ctx context.Context) error {
	found, err := d.source.Discover(ctx)
	if err != nil {
		return err
	}
	next := make(map[string]model.ResourceCandidate, len(found))
	for _, c := range found {
		next[c.ID] = c
	}
	d.mu.Lock()
	d.snapshot = next
	d.refreshed = time.Now()
	d.mu.Unlock()
	d.log.Debugf("resource directory refreshed, %d resources", len(next))
	return nil
}

func (d *CachedDirectory) ListAvailable(_ context.Context, f Filter) ([]model.ResourceCandidate, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.ResourceCandidate, 0, len(d.snapshot))
	for _, c := range d.snapshot {
		if c.Available && f.Matches(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *CachedDirectory) CapabilitiesOf(_ context.Context, id string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.snapshot[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, id)
	}
	caps := make([]string, len(c.Capabilities))
	copy(caps, c.Capabilities)
	return caps, nil
}

// LastRefresh reports when the snapshot was last replaced.
func (d *CachedDirectory) LastRefresh() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.refreshed
}

func (d *CachedDirectory) Close() {
	close(d.stop)
	if d.started {
		<-d.done
	}
}
