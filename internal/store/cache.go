package store

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedGateway keeps recently fetched sessions in memory. Sessions are
// immutable once stored, so only deletion invalidates an entry.
type CachedGateway struct {
	inner Gateway
	cache *lru.Cache[string, CompletedWorkoutSession]
}

var _ Gateway = (*CachedGateway)(nil)

func NewCachedGateway(inner Gateway, size int) (*CachedGateway, error) {
	if inner == nil {
		panic("CachedGateway: inner cannot be nil")
	}
	cache, err := lru.New[string, CompletedWorkoutSession](size)
	if err != nil {
		return nil, fmt.Errorf("creating session cache: %w", err)
	}
	return &CachedGateway{inner: inner, cache: cache}, nil
}

func (c *CachedGateway) CreateWorkoutSession(ctx context.Context, s CompletedWorkoutSession) (string, error) {
	return c.inner.CreateWorkoutSession(ctx, s)
}

func (c *CachedGateway) FetchSession(ctx context.Context, id string) (*CompletedWorkoutSession, error) {
	if s, ok := c.cache.Get(id); ok {
		return &s, nil
	}
	s, err := c.inner.FetchSession(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, *s)
	return s, nil
}

func (c *CachedGateway) FetchAllSessions(ctx context.Context) ([]CompletedWorkoutSession, error) {
	return c.inner.FetchAllSessions(ctx)
}

func (c *CachedGateway) DeleteSession(ctx context.Context, id string) error {
	c.cache.Remove(id)
	return c.inner.DeleteSession(ctx, id)
}

func (c *CachedGateway) StatsAcrossSessions(ctx context.Context) (Stats, error) {
	return c.inner.StatsAcrossSessions(ctx)
}

// Cached reports whether id is currently held in memory.
func (c *CachedGateway) Cached(id string) bool {
	return c.cache.Contains(id)
}
