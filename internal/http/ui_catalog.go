package httpx

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/target/microshop-ui/internal/domain/model"
	apperrors "github.com/target/microshop-ui/internal/errors"
)

const (
	msgInvalidProductID = "Please enter a valid product ID"
	msgProductNotFound  = "Product not found"
)

// Notices shown after a redirect, keyed by the notice query parameter.
const (
	noticeOrderPlaced    = "order_placed"
	noticeProductCreated = "product_created"
	noticeProductUpdated = "product_updated"
	noticeProductDeleted = "product_deleted"
)

func noticeText(q url.Values) string {
	switch q.Get("notice") {
	case noticeOrderPlaced:
		n, err := strconv.Atoi(q.Get("qty"))
		if err != nil || n < 1 {
			return "Order placed successfully!"
		}
		return fmt.Sprintf("Order placed successfully! (%d %s)", n, pluralItems(n))
	case noticeProductCreated:
		return "Product created successfully!"
	case noticeProductUpdated:
		return "Product updated successfully!"
	case noticeProductDeleted:
		return "Product deleted successfully!"
	default:
		return ""
	}
}

func pluralItems(n int) string {
	if n == 1 {
		return "item"
	}
	return "items"
}

// Home renders the catalog with the optional product search.
func (h *UIHandlers) Home(w http.ResponseWriter, r *http.Request) {
	data := h.homeData(r, strings.TrimSpace(r.URL.Query().Get("product_id")))
	data["Notice"] = noticeText(r.URL.Query())
	h.renderPage(w, r, http.StatusOK, data)
}

// homeData loads the catalog and the searched product concurrently.
func (h *UIHandlers) homeData(r *http.Request, query string) map[string]any {
	data := basePageData(r, PageMeta{Title: "Products", PageTitle: "Products", CurrentPage: PageHome})
	data["SearchQuery"] = query
	data["CanBuy"] = canBuy(r)

	ctx := r.Context()
	token := sessionToken(r)

	var (
		products  []model.Product
		listErr   error
		found     *model.Product
		searchMsg string
		g         errgroup.Group
	)
	g.Go(func() error {
		products, listErr = h.Catalog.ListProducts(ctx, token)
		return nil
	})
	if query != "" {
		g.Go(func() error {
			found, searchMsg = h.searchProduct(ctx, token, query)
			return nil
		})
	}
	_ = g.Wait()

	if listErr != nil {
		h.logger().WarnContext(ctx, "catalog load failed", "error", listErr)
		data["ListError"] = "Failed to load products: " + userMessage(listErr)
	}
	data["Products"] = products
	data["SearchResult"] = found
	data["SearchError"] = searchMsg
	return data
}

func (h *UIHandlers) searchProduct(ctx context.Context, token, query string) (*model.Product, string) {
	id, err := strconv.ParseInt(query, 10, 64)
	if err != nil || id <= 0 {
		return nil, msgInvalidProductID
	}
	p, err := h.Catalog.GetProduct(ctx, token, id)
	switch {
	case err == nil:
		return p, ""
	case apperrors.IsNotFound(err):
		return nil, msgProductNotFound
	case apperrors.IsValidation(err):
		return nil, msgInvalidProductID
	default:
		return nil, "Failed to search product: " + userMessage(err)
	}
}

// PlaceOrder submits a single-product order from the catalog page.
func (h *UIHandlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	productID, _ := strconv.ParseInt(strings.TrimSpace(r.PostFormValue("product_id")), 10, 64)
	qty, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("quantity")))
	if err != nil {
		qty = 0
	}

	req := model.OrderRequest{Items: []model.OrderItemRequest{{ProductID: productID, Quantity: qty}}}
	order, err := h.Orders.PlaceOrder(r.Context(), sessionToken(r), req)
	if err != nil {
		h.logger().WarnContext(r.Context(), "place order failed", "error", err, "product_id", productID)
		data := h.homeData(r, "")
		data["OrderError"] = "Failed to place order: " + userMessage(err)
		h.renderPage(w, r, StatusForError(err), data)
		return
	}

	n := order.ItemCount()
	if n == 0 {
		n = qty
	}
	q := url.Values{"notice": {noticeOrderPlaced}, "qty": {strconv.Itoa(n)}}
	redirectAfterPost(w, r, "/?"+q.Encode())
}
