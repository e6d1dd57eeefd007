package app

import (
	"context"

	"github.com/ovenworks/bakeshop/internal/domain"
	"github.com/ovenworks/bakeshop/internal/metrics"
	"go.uber.org/zap"
)

type ProductRepository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// CatalogCache is the cache-aside layer in front of the product
// catalog. Implementations report errors; the service degrades to a
// direct store read on any of them.
type CatalogCache interface {
	GetProducts(ctx context.Context) ([]domain.Product, bool, error)
	SetProducts(ctx context.Context, products []domain.Product) error
}

type CatalogService struct {
	repo    ProductRepository
	cache   CatalogCache
	logger  *zap.Logger
	metrics *metrics.APIMetrics
}

func NewCatalogService(repo ProductRepository, cache CatalogCache, logger *zap.Logger, m *metrics.APIMetrics) *CatalogService {
	return &CatalogService{
		repo:    repo,
		cache:   cache,
		logger:  logger,
		metrics: m,
	}
}

// ListProducts checks the cache first, falls through to the store on a
// miss, and repopulates the cache best-effort. Cache unavailability
// never fails the read.
func (s *CatalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if s.cache != nil {
		products, ok, err := s.cache.GetProducts(ctx)
		if err != nil {
			s.logger.Warn("catalog cache read", zap.Error(err))
		} else if ok {
			s.metrics.CacheHits.Inc()
			return products, nil
		}
	}
	s.metrics.CacheMisses.Inc()

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetProducts(ctx, products); err != nil {
			s.logger.Warn("catalog cache populate", zap.Error(err))
		}
	}
	return products, nil
}
