// Package product serves the catalog endpoints. Catalog reads and writes
// are plain repository calls; the featured list is cached briefly in
// Redis since it backs the landing page.
package product

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/models"
	"storefront/internal/store"
)

// featuredCacheKey holds the serialized featured list for featuredCacheTTL.
const (
	featuredCacheKey = "featuredProducts"
	featuredCacheTTL = 60 * time.Second
)

// Service wraps the product store with the featured-list cache.
type Service struct {
	products store.ProductStore
	cache    *redis.Client
	logger   *slog.Logger
}

// NewService wires the catalog service. cache may be nil to disable the
// featured cache.
func NewService(products store.ProductStore, cache *redis.Client, logger *slog.Logger) *Service {
	return &Service{products: products, cache: cache, logger: logger}
}

// All returns every product.
func (s *Service) All(ctx context.Context) ([]models.Product, error) {
	return s.products.All(ctx)
}

// Featured returns featured products, served from cache when fresh. A
// cache failure falls through to the store; the cache is never load
// bearing.
func (s *Service) Featured(ctx context.Context) ([]models.Product, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, featuredCacheKey).Result(); err == nil {
			var cached []models.Product
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return cached, nil
			}
		}
	}

	products, err := s.products.Featured(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(products); err == nil {
			if err := s.cache.Set(ctx, featuredCacheKey, raw, featuredCacheTTL).Err(); err != nil {
				s.logger.Warn("featured cache write failed", "error", err)
			}
		}
	}
	return products, nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id string) (*models.Product, error) {
	return s.products.FindByID(ctx, id)
}

// Create inserts a product and drops the featured cache.
func (s *Service) Create(ctx context.Context, p *models.Product) error {
	if p.Description == "" {
		p.Description = "No Description Available"
	}
	if p.CountInStock == 0 {
		p.CountInStock = 1
	}
	if err := s.products.Create(ctx, p); err != nil {
		return err
	}
	s.invalidateFeatured(ctx)
	return nil
}

// Delete removes a product and drops the featured cache.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateFeatured(ctx)
	return nil
}

// ToggleFeatured flips the featured flag and drops the featured cache.
func (s *Service) ToggleFeatured(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.products.ToggleFeatured(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidateFeatured(ctx)
	return p, nil
}

func (s *Service) invalidateFeatured(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, featuredCacheKey).Err(); err != nil {
		s.logger.Warn("featured cache invalidation failed", "error", err)
	}
}
