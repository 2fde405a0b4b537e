// Package mocks provides mock implementations for testing the storefront services.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	gw := mocks.NewMockGatewayClient(ctrl)
//	gw.EXPECT().ListProducts(gomock.Any(), "token").Return(products, nil)
package mocks

// Generate mock for GatewayClient interface from internal/ports package.
// This creates MockGatewayClient with methods for all GatewayClient interface methods:
// ListProducts, GetProduct, CreateProduct, UpdateProduct, DeleteProduct, PlaceOrder, ListMyOrders, ListAllOrders
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=gateway_client_mock.go github.com/target/microshop-ui/internal/ports GatewayClient

// Generate mock for TokenRepository interface from internal/ports package.
// This creates MockTokenRepository with methods for all TokenRepository interface methods:
// Save, Get, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=token_repository_mock.go github.com/target/microshop-ui/internal/ports TokenRepository

// Generate mock for CacheRepository interface from internal/ports package.
// This creates MockCacheRepository with methods for all CacheRepository interface methods:
// Get, Set, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/target/microshop-ui/internal/ports CacheRepository
