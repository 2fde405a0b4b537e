package ports

import (
	"context"
	"time"

	"github.com/target/microshop-ui/internal/domain/model"
)

// GatewayClient calls the REST gateway on behalf of a session.
// Every method takes the caller's bearer token; an empty token sends no Authorization header.
type GatewayClient interface {
	ListProducts(ctx context.Context, token string) ([]model.Product, error)
	GetProduct(ctx context.Context, token string, id int64) (*model.Product, error)
	CreateProduct(ctx context.Context, token string, req model.ProductRequest) (*model.Product, error)
	UpdateProduct(ctx context.Context, token string, id int64, req model.ProductRequest) (*model.Product, error)
	DeleteProduct(ctx context.Context, token string, id int64) error

	PlaceOrder(ctx context.Context, token string, req model.OrderRequest) (*model.Order, error)
	ListMyOrders(ctx context.Context, token string) ([]model.Order, error)
	ListAllOrders(ctx context.Context, token string) ([]model.Order, error)
}

// CacheRepository is the minimal key/value cache used for catalog reads.
// Get returns (nil, nil) on a miss.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
