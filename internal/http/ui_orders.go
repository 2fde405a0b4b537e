package httpx

import (
	"net/http"
)

// MyOrders lists the signed-in client's orders.
func (h *UIHandlers) MyOrders(w http.ResponseWriter, r *http.Request) {
	data := basePageData(r, PageMeta{Title: "My Orders", PageTitle: "My Orders", CurrentPage: PageMyOrders})
	orders, err := h.Orders.ListMine(r.Context(), sessionToken(r))
	if err != nil {
		h.logger().WarnContext(r.Context(), "list my orders failed", "error", err)
		data["Error"] = true
		data["ErrorMessage"] = "Failed to load orders: " + userMessage(err)
	}
	data["Orders"] = orders
	h.renderPage(w, r, http.StatusOK, data)
}

// AdminOrders lists every order for administrators.
func (h *UIHandlers) AdminOrders(w http.ResponseWriter, r *http.Request) {
	data := basePageData(r, PageMeta{Title: "All Orders", PageTitle: "All Orders", CurrentPage: PageAdminOrders})
	orders, err := h.Orders.ListAll(r.Context(), sessionToken(r))
	if err != nil {
		h.logger().WarnContext(r.Context(), "list all orders failed", "error", err)
		data["Error"] = true
		data["ErrorMessage"] = "Failed to load orders: " + userMessage(err)
	}
	data["Orders"] = orders
	h.renderPage(w, r, http.StatusOK, data)
}
