//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const maxProductNameLen = 255

// Product is a catalog entry as returned by the gateway.
type Product struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stockQuantity"`
}

// InStock reports whether at least one unit can be ordered.
func (p Product) InStock() bool { return p.StockQuantity > 0 }

// ProductRequest carries the fields for creating or replacing a product.
// Price and StockQuantity are pointers so "missing" and "zero" stay distinct.
type ProductRequest struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Price         *float64 `json:"price"`
	StockQuantity *int     `json:"stockQuantity"`
}

// Validate mirrors the gateway's product rules so forms fail early.
func (r *ProductRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	if r.Name == "" {
		return errors.New("name is mandatory")
	}
	if utf8.RuneCountInString(r.Name) > maxProductNameLen {
		return errors.New("name cannot exceed 255 characters")
	}
	if r.Price == nil {
		return errors.New("price is mandatory")
	}
	if *r.Price <= 0 {
		return errors.New("price must be positive")
	}
	if r.StockQuantity == nil {
		return errors.New("stock quantity is mandatory")
	}
	if *r.StockQuantity < 0 {
		return errors.New("stock cannot be negative")
	}
	return nil
}
