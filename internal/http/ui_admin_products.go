package httpx

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/target/microshop-ui/internal/domain/model"
	apperrors "github.com/target/microshop-ui/internal/errors"
	"github.com/target/microshop-ui/internal/http/validation"
)

const adminProductsPath = "/admin/products"

// ProductForm holds the raw admin form values so they survive a failed submit.
type ProductForm struct {
	Name          string
	Description   string
	Price         string
	StockQuantity string
}

func productFormFrom(p *model.Product) ProductForm {
	return ProductForm{
		Name:          p.Name,
		Description:   p.Description,
		Price:         strconv.FormatFloat(p.Price, 'f', 2, 64),
		StockQuantity: strconv.Itoa(p.StockQuantity),
	}
}

// Request converts a validated form into a gateway request.
func (f ProductForm) Request() model.ProductRequest {
	req := model.ProductRequest{Name: strings.TrimSpace(f.Name), Description: strings.TrimSpace(f.Description)}
	if price, err := strconv.ParseFloat(strings.TrimSpace(f.Price), 64); err == nil {
		req.Price = &price
	}
	if stock, err := strconv.Atoi(strings.TrimSpace(f.StockQuantity)); err == nil {
		req.StockQuantity = &stock
	}
	return req
}

func parseProductForm(r *http.Request) (ProductForm, map[string]string) {
	if err := r.ParseForm(); err != nil {
		return ProductForm{}, map[string]string{"name": "Invalid form submission."}
	}
	f := ProductForm{
		Name:          r.PostFormValue("name"),
		Description:   r.PostFormValue("description"),
		Price:         r.PostFormValue("price"),
		StockQuantity: r.PostFormValue("stock_quantity"),
	}
	errs := validation.New().
		Validate("name", f.Name, validation.Required("Name", 255)).
		Validate("description", f.Description, validation.Optional("Description", 2000)).
		Validate("price", f.Price, validation.PositiveNumber("Price")).
		Validate("stock_quantity", f.StockQuantity, validation.IntMin("Stock quantity", 0)).
		Errors()
	return f, errs
}

func productIDFromPath(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func adminProductsMeta() PageMeta {
	return PageMeta{Title: "Manage Products", PageTitle: "Manage Products", CurrentPage: PageAdminProducts}
}

// renderProductsPage adds the product list to data and renders the admin page.
func (h *UIHandlers) renderProductsPage(w http.ResponseWriter, r *http.Request, status int, data map[string]any) {
	products, err := h.Catalog.ListProducts(r.Context(), sessionToken(r))
	if err != nil {
		h.logger().WarnContext(r.Context(), "admin product list failed", "error", err)
		data["ListError"] = "Failed to load products: " + userMessage(err)
	}
	data["Products"] = products
	if _, ok := data["Errors"]; !ok {
		data["Errors"] = map[string]string{}
	}
	h.renderPage(w, r, status, data)
}

// AdminProducts lists products with the create form.
func (h *UIHandlers) AdminProducts(w http.ResponseWriter, r *http.Request) {
	data := NewTemplateData(r, adminProductsMeta()).
		WithNotice(noticeText(r.URL.Query())).
		With("Mode", FormModeCreate).
		With("FormData", ProductForm{}).
		Build()
	h.renderProductsPage(w, r, http.StatusOK, data)
}

// EditProduct shows the edit form for one product.
func (h *UIHandlers) EditProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDFromPath(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	p, err := h.Catalog.GetProduct(r.Context(), sessionToken(r), id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			h.NotFound(w, r)
			return
		}
		data := NewTemplateData(r, adminProductsMeta()).
			WithError("Failed to load product: "+userMessage(err)).
			With("Mode", FormModeCreate).
			With("FormData", ProductForm{}).
			Build()
		h.renderProductsPage(w, r, StatusForError(err), data)
		return
	}
	data := NewTemplateData(r, adminProductsMeta()).
		With("Mode", FormModeEdit).
		With("EditID", id).
		With("FormData", productFormFrom(p)).
		Build()
	h.renderProductsPage(w, r, http.StatusOK, data)
}

// CreateProduct handles the create form.
func (h *UIHandlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	HandleForm(FormHandlerOpts[ProductForm]{
		W: w, R: r, Mode: FormModeCreate,
		Parser: parseProductForm,
		Submit: func(ctx context.Context, f ProductForm) error {
			_, err := h.Catalog.CreateProduct(ctx, token, f.Request())
			return err
		},
		Renderer:   h.renderProductsPage,
		SuccessURL: adminProductsPath + "?notice=" + noticeProductCreated,
		PageMeta:   adminProductsMeta(),
	})
}

// UpdateProduct handles the edit form.
func (h *UIHandlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDFromPath(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	token := sessionToken(r)
	HandleForm(FormHandlerOpts[ProductForm]{
		W: w, R: r, Mode: FormModeEdit,
		Parser: parseProductForm,
		Submit: func(ctx context.Context, f ProductForm) error {
			_, err := h.Catalog.UpdateProduct(ctx, token, id, f.Request())
			return err
		},
		Renderer:   h.renderProductsPage,
		SuccessURL: adminProductsPath + "?notice=" + noticeProductUpdated,
		PageMeta:   adminProductsMeta(),
		ExtraData:  map[string]any{"EditID": id},
	})
}

// DeleteProduct removes a product after the browser confirmed it.
func (h *UIHandlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDFromPath(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	if err := h.Catalog.DeleteProduct(r.Context(), sessionToken(r), id); err != nil {
		h.logger().WarnContext(r.Context(), "delete product failed", "error", err, "product_id", id)
		data := NewTemplateData(r, adminProductsMeta()).
			WithError("Failed to delete product: "+userMessage(err)).
			With("Mode", FormModeCreate).
			With("FormData", ProductForm{}).
			Build()
		h.renderProductsPage(w, r, StatusForError(err), data)
		return
	}
	redirectAfterPost(w, r, adminProductsPath+"?notice="+noticeProductDeleted)
}
