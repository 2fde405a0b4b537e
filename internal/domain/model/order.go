//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"
)

// OrderStatus is the lifecycle state reported by the order service.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Valid reports whether the status is one the UI knows how to style.
// Unknown statuses are still displayed verbatim.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// LocalTime is a timestamp without zone information, as serialized by the
// order service. Values are interpreted in UTC.
type LocalTime struct {
	time.Time
}

var localTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC3339Nano,
}

// ParseLocalTime parses a zone-less ISO-8601 timestamp, accepting RFC 3339 too.
func ParseLocalTime(v string) (LocalTime, error) {
	v = strings.TrimSpace(v)
	for _, layout := range localTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return LocalTime{Time: t}, nil
		}
	}
	return LocalTime{}, fmt.Errorf("invalid local time %q", v)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *LocalTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = LocalTime{}
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*t = LocalTime{}
		return nil
	}
	parsed, err := ParseLocalTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t LocalTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Format("2006-01-02T15:04:05") + `"`), nil
}

// OrderItem is a single line of a placed order.
type OrderItem struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	SubTotal    float64 `json:"subTotal"`
}

// Order is an order as returned by the gateway.
type Order struct {
	ID          int64       `json:"id"`
	OrderDate   LocalTime   `json:"orderDate"`
	Status      OrderStatus `json:"status"`
	TotalAmount float64     `json:"totalAmount"`
	UserID      string      `json:"userId"`
	Items       []OrderItem `json:"items"`
}

// ItemCount sums the quantities across all lines.
func (o Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// OrderItemRequest selects a product and quantity for a new order.
type OrderItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// OrderRequest is the body for placing an order.
type OrderRequest struct {
	Items []OrderItemRequest `json:"items"`
}

// Validate mirrors the gateway's order rules.
func (r OrderRequest) Validate() error {
	if len(r.Items) == 0 {
		return errors.New("items cannot be empty")
	}
	for i, it := range r.Items {
		if it.ProductID <= 0 {
			return fmt.Errorf("items[%d]: product ID is mandatory", i)
		}
		if it.Quantity < 1 {
			return fmt.Errorf("items[%d]: quantity must be at least 1", i)
		}
	}
	return nil
}
