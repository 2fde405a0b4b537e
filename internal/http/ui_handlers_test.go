package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/microshop-ui/internal/domain/model"
	apperrors "github.com/target/microshop-ui/internal/errors"
)

var testProducts = []model.Product{
	{ID: 1, Name: "Espresso Beans", Description: "Dark roast", Price: 19.99, StockQuantity: 4},
	{ID: 2, Name: "Pour Over Kettle", Description: "Gooseneck", Price: 45, StockQuantity: 0},
}

func TestUI_Home_Anonymous(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.EXPECT().ListProducts(gomock.Any(), "").Return(testProducts, nil)

	rr := env.do(t, testRequest{Path: "/", ClientID: clientAnon})

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, ContainsAll(body, []string{"Espresso Beans", "$19.99", "Out of stock", "Sign in", "<title>Products - MicroShop</title>"}))
	assert.NotContains(t, body, "Buy Now")
	assert.NotContains(t, body, "My Orders")
	assert.NotContains(t, body, "Manage Products")
}

func TestUI_Home_ClientCanBuy(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t, clientBuyer, "bob", "CLIENT")
	env.gateway.EXPECT().ListProducts(gomock.Any(), token).Return(testProducts, nil)

	rr := env.do(t, testRequest{Path: "/", ClientID: clientBuyer})

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, ContainsAll(body, []string{"Welcome, bob", "My Orders", "Buy Now", `action="/orders"`}))
	assert.NotContains(t, body, "Manage Products")
}

func TestUI_Home_Search(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		expect func(env *testEnv)
		want   string
	}{
		{name: "not a number", query: "abc", want: "Please enter a valid product ID"},
		{name: "not positive", query: "-3", want: "Please enter a valid product ID"},
		{
			name:  "found",
			query: "1",
			expect: func(env *testEnv) {
				env.gateway.EXPECT().GetProduct(gomock.Any(), "", int64(1)).Return(&testProducts[0], nil)
			},
			want: "product--highlight",
		},
		{
			name:  "missing",
			query: "99",
			expect: func(env *testEnv) {
				env.gateway.EXPECT().GetProduct(gomock.Any(), "", int64(99)).Return(nil, apperrors.NotFound("Product not found with id: 99"))
			},
			want: "Product not found",
		},
		{
			name:  "gateway down",
			query: "5",
			expect: func(env *testEnv) {
				env.gateway.EXPECT().GetProduct(gomock.Any(), "", int64(5)).Return(nil, apperrors.Upstream("gateway unavailable"))
			},
			want: "Failed to search product: gateway unavailable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.gateway.EXPECT().ListProducts(gomock.Any(), "").Return(testProducts, nil)
			if tt.expect != nil {
				tt.expect(env)
			}

			rr := env.do(t, testRequest{Path: "/?product_id=" + url.QueryEscape(tt.query), ClientID: clientAnon})

			require.Equal(t, http.StatusOK, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.want)
		})
	}
}

func TestUI_Home_ListError(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.EXPECT().ListProducts(gomock.Any(), "").Return(nil, apperrors.Upstream("gateway unavailable"))

	rr := env.do(t, testRequest{Path: "/", ClientID: clientAnon})

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Failed to load products: gateway unavailable")
	assert.NotContains(t, rr.Body.String(), "No products available.")
}

func TestUI_Home_NoticeAfterOrder(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.EXPECT().ListProducts(gomock.Any(), "").Return(nil, nil)

	rr := env.do(t, testRequest{Path: "/?notice=order_placed&qty=2", ClientID: clientAnon})

	assert.Contains(t, rr.Body.String(), "Order placed successfully! (2 items)")
}

func TestUI_Home_HTMXPartial(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.EXPECT().ListProducts(gomock.Any(), "").Return(testProducts, nil)

	rr := env.do(t, testRequest{Path: "/", ClientID: clientAnon, Headers: map[string]string{"HX-Request": "true"}})

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `hx-swap-oob="outerHTML"`)
	assert.Contains(t, body, "Espresso Beans")
	assert.NotContains(t, body, "<!DOCTYPE html>")
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "nav:activate")
}

func TestUI_PlaceOrder_Success(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t, clientBuyer, "bob", "CLIENT")
	want := model.OrderRequest{Items: []model.OrderItemRequest{{ProductID: 1, Quantity: 2}}}
	env.gateway.EXPECT().ListProducts(gomock.Any(), token).Return(testProducts, nil)
	env.gateway.EXPECT().PlaceOrder(gomock.Any(), token, want).Return(&model.Order{
		ID:     10,
		Status: model.OrderStatusPending,
		Items:  []model.OrderItem{{ProductID: 1, Quantity: 2}},
	}, nil)

	rr := env.do(t, testRequest{
		Method:   http.MethodPost,
		Path:     "/orders",
		ClientID: clientBuyer,
		Form:     url.Values{"product_id": {"1"}, "quantity": {"2"}},
	})

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/?notice=order_placed&qty=2", rr.Header().Get("Location"))
}

func TestUI_PlaceOrder_GatewayRejects(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t, clientBuyer, "bob", "CLIENT")
	// The listed stock allows the order; another buyer took it first.
	env.gateway.EXPECT().PlaceOrder(gomock.Any(), token, gomock.Any()).Return(nil, apperrors.Conflict("Insufficient stock for product: Espresso Beans"))
	env.gateway.EXPECT().ListProducts(gomock.Any(), token).Return(testProducts, nil).Times(2)

	rr := env.do(t, testRequest{
		Method:   http.MethodPost,
		Path:     "/orders",
		ClientID: clientBuyer,
		Form:     url.Values{"product_id": {"1"}, "quantity": {"3"}},
	})

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "Failed to place order: Insufficient stock for product: Espresso Beans")
}

func TestUI_PlaceOrder_QuantityAboveStock(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t, clientBuyer, "bob", "CLIENT")
	env.gateway.EXPECT().ListProducts(gomock.Any(), token).Return(testProducts, nil).Times(2)

	rr := env.do(t, testRequest{
		Method:   http.MethodPost,
		Path:     "/orders",
		ClientID: clientBuyer,
		Form:     url.Values{"product_id": {"1"}, "quantity": {"5"}},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "Failed to place order: Quantity for Espresso Beans cannot exceed available stock (4)")
}

func TestUI_PlaceOrder_InvalidQuantity(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t, clientBuyer, "bob", "CLIENT")
	env.gateway.EXPECT().ListProducts(gomock.Any(), token).Return(testProducts, nil)

	rr := env.do(t, testRequest{
		Method:   http.MethodPost,
		Path:     "/orders",
		ClientID: clientBuyer,
		Form:     url.Values{"product_id": {"1"}, "quantity": {"0"}},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "Failed to place order:")
}

func TestUI_PlaceOrder_AnonymousGetsSignInPrompt(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, testRequest{
		Method:   http.MethodPost,
		Path:     "/orders",
		ClientID: clientAnon,
		Form:     url.Values{"product_id": {"1"}, "quantity": {"1"}},
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Location"))
	assert.Contains(t, rr.Body.String(), "Please sign in to view Home.")
	assert.Contains(t, rr.Body.String(), "/auth/login?redirect_uri=%2F")
}

func TestUI_PlaceOrder_AdminWithoutClientRoleIsDenied(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, clientAdmin, "root", "ADMIN")

	rr := env.do(t, testRequest{
		Method:   http.MethodPost,
		Path:     "/orders",
		ClientID: clientAdmin,
		Form:     url.Values{"product_id": {"1"}, "quantity": {"1"}},
	})

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/access-denied", rr.Header().Get("Location"))
}

func TestUI_PlaceOrder_RequiresCSRFToken(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, clientBuyer, "bob", "CLIENT")

	rr := env.do(t, testRequest{
		Method:   http.MethodPost,
		Path:     "/orders",
		ClientID: clientBuyer,
		Form:     url.Values{"product_id": {"1"}, "quantity": {"1"}},
		Headers:  map[string]string{CSRFHeaderName: "forged"},
	})

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestUI_MyOrders(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t, clientBuyer, "bob", "CLIENT")
	env.gateway.EXPECT().ListMyOrders(gomock.Any(), token).Return([]model.Order{{
		ID:          7,
		Status:      model.OrderStatusCompleted,
		TotalAmount: 39.98,
		Items:       []model.OrderItem{{ProductID: 1, ProductName: "Espresso Beans", Quantity: 2, Price: 19.99, SubTotal: 39.98}},
	}}, nil)

	rr := env.do(t, testRequest{Path: "/my-orders", ClientID: clientBuyer})

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, ContainsAll(rr.Body.String(), []string{"Order #7", "badge--completed", "Total: $39.98", "2 items"}))
}

func TestUI_MyOrders_LoadError(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t, clientBuyer, "bob", "CLIENT")
	env.gateway.EXPECT().ListMyOrders(gomock.Any(), token).Return(nil, apperrors.Upstream("gateway unavailable"))

	rr := env.do(t, testRequest{Path: "/my-orders", ClientID: clientBuyer})

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Failed to load orders: gateway unavailable")
	assert.NotContains(t, rr.Body.String(), "You have not placed any orders yet.")
}

func TestUI_AdminOrders_DeniedForClient(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, clientBuyer, "bob", "CLIENT")

	rr := env.do(t, testRequest{Path: "/admin/orders", ClientID: clientBuyer})

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/access-denied", rr.Header().Get("Location"))
	assert.Contains(t, env.metrics.Decisions(), "admin-orders:deny")
}

func TestUI_AdminProducts_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t, clientAdmin, "root", "ADMIN")
	env.gateway.EXPECT().ListProducts(gomock.Any(), token).Return(testProducts, nil)

	rr := env.do(t, testRequest{
		Method:   http.MethodPost,
		Path:     "/admin/products",
		ClientID: clientAdmin,
		Form:     url.Values{"name": {" "}, "price": {"-1"}, "stock_quantity": {"x"}},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.True(t, ContainsAll(rr.Body.String(), []string{
		"Name is required.",
		"Price must be positive.",
		"field-error",
	}))
}

func TestUI_AdminProducts_CreateSuccess(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t, clientAdmin, "root", "ADMIN")
	env.gateway.EXPECT().CreateProduct(gomock.Any(), token, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, req model.ProductRequest) (*model.Product, error) {
			assert.Equal(t, "Grinder", req.Name)
			require.NotNil(t, req.Price)
			assert.InDelta(t, 120.5, *req.Price, 0.001)
			require.NotNil(t, req.StockQuantity)
			assert.Equal(t, 3, *req.StockQuantity)
			return &model.Product{ID: 3, Name: req.Name}, nil
		})

	rr := env.do(t, testRequest{
		Method:   http.MethodPost,
		Path:     "/admin/products",
		ClientID: clientAdmin,
		Form:     url.Values{"name": {"Grinder"}, "price": {"120.50"}, "stock_quantity": {"3"}},
	})

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/admin/products?notice=product_created", rr.Header().Get("Location"))
}

func TestUI_AdminProducts_DeleteViaHTMX(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t, clientAdmin, "root", "ADMIN")
	env.gateway.EXPECT().DeleteProduct(gomock.Any(), token, int64(2)).Return(nil)

	rr := env.do(t, testRequest{
		Method:   http.MethodPost,
		Path:     "/admin/products/2/delete",
		ClientID: clientAdmin,
		Headers:  map[string]string{"HX-Request": "true"},
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "/admin/products?notice=product_deleted", rr.Header().Get("HX-Redirect"))
}

func TestUI_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, testRequest{Path: "/no-such-page", ClientID: clientAnon})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "404 - Page Not Found")

	rr = env.do(t, testRequest{Path: "/no-such-page", ClientID: clientAnon, JSON: true})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body["error"])
}

func TestUI_AccessDeniedPage(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, testRequest{Path: "/access-denied", ClientID: clientAnon})

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "You do not have permission to view this page.")
}
