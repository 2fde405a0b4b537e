package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/target/microshop-ui/internal/domain/model"
	apperrors "github.com/target/microshop-ui/internal/errors"
	"github.com/target/microshop-ui/internal/ports"
)

// OrderServiceOptions groups dependencies for OrderService.
type OrderServiceOptions struct {
	Gateway ports.GatewayClient
	Catalog *CatalogService // Optional: checks quantities against stock, invalidated after an order
	Logger  *slog.Logger
}

// OrderService places and lists orders through the gateway.
type OrderService struct {
	gateway ports.GatewayClient
	catalog *CatalogService
	logger  *slog.Logger
}

// NewOrderService constructs an OrderService.
func NewOrderService(opts OrderServiceOptions) *OrderService {
	if opts.Gateway == nil {
		panic("order service requires a gateway client")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{
		gateway: opts.Gateway,
		catalog: opts.Catalog,
		logger:  logger.With("component", "order_service"),
	}
}

// PlaceOrder validates and submits an order for the token's user.
func (s *OrderService) PlaceOrder(ctx context.Context, token string, req model.OrderRequest) (*model.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid order")
	}
	if err := s.checkStock(ctx, token, req); err != nil {
		return nil, err
	}
	order, err := s.gateway.PlaceOrder(ctx, token, req)
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
	s.logger.InfoContext(ctx, "order placed", "order_id", order.ID, "items", len(req.Items))
	return order, nil
}

// checkStock rejects quantities above a product's listed stock. Products
// missing from the catalog, or a catalog that cannot be read, are left to the gateway.
func (s *OrderService) checkStock(ctx context.Context, token string, req model.OrderRequest) error {
	if s.catalog == nil {
		return nil
	}
	products, err := s.catalog.ListProducts(ctx, token)
	if err != nil {
		s.logger.WarnContext(ctx, "stock check skipped", "error", err)
		return nil
	}
	byID := make(map[int64]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, item := range req.Items {
		p, ok := byID[item.ProductID]
		if !ok {
			continue
		}
		if item.Quantity > p.StockQuantity {
			return apperrors.Validationf("Quantity for %s cannot exceed available stock (%d)", p.Name, p.StockQuantity)
		}
	}
	return nil
}

// ListMine returns the orders of the token's user.
func (s *OrderService) ListMine(ctx context.Context, token string) ([]model.Order, error) {
	orders, err := s.gateway.ListMyOrders(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("list my orders: %w", err)
	}
	return orders, nil
}

// ListAll returns every order; the gateway restricts it to admins.
func (s *OrderService) ListAll(ctx context.Context, token string) ([]model.Order, error) {
	orders, err := s.gateway.ListAllOrders(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("list all orders: %w", err)
	}
	return orders, nil
}
