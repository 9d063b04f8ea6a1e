package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/harentsoaR/doctors-portal/internal/metrics"
	"github.com/harentsoaR/doctors-portal/internal/models"
	"github.com/harentsoaR/doctors-portal/internal/store"
)

const catalogKey = "doctors-portal:catalog:services"

// Cache is the part of *redis.Client the catalog uses.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Catalog serves the read-only services collection, optionally through a
// Redis read-through cache. Cache failures fall back to the store.
type Catalog struct {
	col     store.Collection
	cache   Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	log     *slog.Logger
}

type CatalogOption func(*Catalog)

// WithCache enables caching in c for ttl.
func WithCache(c Cache, ttl time.Duration) CatalogOption {
	return func(cat *Catalog) {
		cat.cache = c
		cat.ttl = ttl
	}
}

func WithMetrics(m *metrics.Metrics) CatalogOption {
	return func(cat *Catalog) { cat.metrics = m }
}

func NewCatalog(col store.Collection, log *slog.Logger, opts ...CatalogOption) *Catalog {
	c := &Catalog{col: col, log: log}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns every service with its full slot list.
func (c *Catalog) List(ctx context.Context) ([]models.Service, error) {
	if c.cache != nil {
		if svcs, ok := c.cached(ctx); ok {
			c.metrics.CatalogLookup("cache")
			return svcs, nil
		}
	}
	c.metrics.CatalogLookup("store")
	svcs, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, svcs)
	return svcs, nil
}

// Names returns the services reduced to their id and name.
func (c *Catalog) Names(ctx context.Context) ([]models.Service, error) {
	if c.cache == nil {
		c.metrics.CatalogLookup("store")
		out := []models.Service{}
		if err := c.col.Find(ctx, bson.M{}, &out, store.Project("name")); err != nil {
			return nil, fmt.Errorf("list service names: %w", err)
		}
		return out, nil
	}

	svcs, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Service, len(svcs))
	for i, s := range svcs {
		out[i] = models.Service{ID: s.ID, Name: s.Name}
	}
	return out, nil
}

// Refresh reloads the cache from the store. It is a no-op without a cache.
func (c *Catalog) Refresh(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	svcs, err := c.load(ctx)
	if err != nil {
		return err
	}
	c.fill(ctx, svcs)
	return nil
}

func (c *Catalog) load(ctx context.Context) ([]models.Service, error) {
	out := []models.Service{}
	if err := c.col.Find(ctx, bson.M{}, &out); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return out, nil
}

func (c *Catalog) cached(ctx context.Context) ([]models.Service, bool) {
	raw, err := c.cache.Get(ctx, catalogKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.log.Warn("catalog cache read failed", "error", err)
		return nil, false
	}
	var svcs []models.Service
	if err := json.Unmarshal(raw, &svcs); err != nil {
		c.log.Warn("catalog cache entry is corrupt", "error", err)
		return nil, false
	}
	return svcs, true
}

func (c *Catalog) fill(ctx context.Context, svcs []models.Service) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(svcs)
	if err != nil {
		c.log.Warn("encode catalog", "error", err)
		return
	}
	if err := c.cache.Set(ctx, catalogKey, raw, c.ttl).Err(); err != nil {
		c.log.Warn("catalog cache write failed", "error", err)
	}
}
