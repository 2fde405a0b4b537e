package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/target/microshop-ui/internal/domain/model"
	apperrors "github.com/target/microshop-ui/internal/errors"
	"github.com/target/microshop-ui/internal/ports"
)

// CatalogCacheKey is the cache entry holding the product list.
const CatalogCacheKey = "catalog:products"

const defaultCatalogCacheTTL = 30 * time.Second

// CatalogCacheConfig configures the optional product list cache.
type CatalogCacheConfig struct {
	Repo ports.CacheRepository
	TTL  time.Duration
}

// CatalogServiceOptions groups dependencies for CatalogService.
type CatalogServiceOptions struct {
	Gateway ports.GatewayClient
	Cache   CatalogCacheConfig
	Logger  *slog.Logger
}

// CatalogService reads and manages products through the gateway.
// The product list is cached for token-bearing callers and invalidated on every write.
type CatalogService struct {
	gateway  ports.GatewayClient
	cache    ports.CacheRepository
	cacheTTL time.Duration
	logger   *slog.Logger
	group    singleflight.Group
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(opts CatalogServiceOptions) *CatalogService {
	if opts.Gateway == nil {
		panic("catalog service requires a gateway client")
	}
	ttl := opts.Cache.TTL
	if ttl <= 0 {
		ttl = defaultCatalogCacheTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{
		gateway:  opts.Gateway,
		cache:    opts.Cache.Repo,
		cacheTTL: ttl,
		logger:   logger.With("component", "catalog_service"),
	}
}

// ListProducts returns the catalog. Anonymous callers always hit the gateway
// so they never see data fetched with someone else's credentials.
func (s *CatalogService) ListProducts(ctx context.Context, token string) ([]model.Product, error) {
	if token != "" {
		if cached, ok := s.cachedProducts(ctx); ok {
			return cached, nil
		}
	}

	v, err, _ := s.group.Do("products:"+token, func() (any, error) {
		products, err := s.gateway.ListProducts(ctx, token)
		if err != nil {
			return nil, err
		}
		if token != "" {
			s.storeProducts(ctx, products)
		}
		return products, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	products, _ := v.([]model.Product)
	return products, nil
}

// GetProduct fetches a single product, bypassing the cache.
func (s *CatalogService) GetProduct(ctx context.Context, token string, id int64) (*model.Product, error) {
	if id <= 0 {
		return nil, apperrors.ValidationField("product_id", "Please enter a valid product ID")
	}
	p, err := s.gateway.GetProduct(ctx, token, id)
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// CreateProduct validates and creates a product.
func (s *CatalogService) CreateProduct(ctx context.Context, token string, req model.ProductRequest) (*model.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid product")
	}
	p, err := s.gateway.CreateProduct(ctx, token, req)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.Invalidate(ctx)
	return p, nil
}

// UpdateProduct validates and replaces a product.
func (s *CatalogService) UpdateProduct(ctx context.Context, token string, id int64, req model.ProductRequest) (*model.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid product")
	}
	p, err := s.gateway.UpdateProduct(ctx, token, id, req)
	if err != nil {
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}
	s.Invalidate(ctx)
	return p, nil
}

// DeleteProduct removes a product.
func (s *CatalogService) DeleteProduct(ctx context.Context, token string, id int64) error {
	if err := s.gateway.DeleteProduct(ctx, token, id); err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	s.Invalidate(ctx)
	return nil
}

// Invalidate drops the cached product list. Failures are logged only.
func (s *CatalogService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, CatalogCacheKey); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate catalog cache", "error", err)
	}
}

func (s *CatalogService) cachedProducts(ctx context.Context) ([]model.Product, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, CatalogCacheKey)
	if err != nil {
		s.logger.WarnContext(ctx, "catalog cache read failed", "error", err)
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	var products []model.Product
	if err := json.Unmarshal(data, &products); err != nil {
		s.logger.WarnContext(ctx, "catalog cache entry is corrupt", "error", err)
		return nil, false
	}
	return products, true
}

func (s *CatalogService) storeProducts(ctx context.Context, products []model.Product) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(products)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, CatalogCacheKey, data, s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "catalog cache write failed", "error", err)
	}
}
