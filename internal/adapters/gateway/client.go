// Package gateway is the HTTP client for the storefront's REST gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/target/microshop-ui/internal/domain/model"
	apperrors "github.com/target/microshop-ui/internal/errors"
	"github.com/target/microshop-ui/internal/observability/metrics"
	"github.com/target/microshop-ui/internal/ports"
)

const (
	// DefaultBaseURL is the gateway address used by the reference deployment.
	DefaultBaseURL = "http://localhost:9090/api"
	// DefaultTimeout bounds one gateway round trip.
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 64 << 10
)

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client // Optional; a client with DefaultTimeout is used when nil
	Observers  Observers
}

// Observers groups the optional logging and metrics sinks.
type Observers struct {
	Logger  *slog.Logger
	Metrics metrics.Recorder
}

// Client implements ports.GatewayClient over net/http. It never retries.
type Client struct {
	base    *url.URL
	http    *http.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

var _ ports.GatewayClient = (*Client)(nil)

// NewClient validates the base URL and builds a Client.
func NewClient(opts ClientOptions) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimSuffix(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse gateway base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("gateway base URL must be http or https: %q", raw)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	logger := opts.Observers.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:    base,
		http:    hc,
		logger:  logger.With("component", "gateway_client"),
		metrics: metrics.OrNop(opts.Observers.Metrics),
	}, nil
}

func (c *Client) ListProducts(ctx context.Context, token string) ([]model.Product, error) {
	var out []model.Product
	if err := c.do(ctx, call{op: "list_products", method: http.MethodGet, path: "/products", token: token}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProduct(ctx context.Context, token string, id int64) (*model.Product, error) {
	var out model.Product
	if err := c.do(ctx, call{op: "get_product", method: http.MethodGet, path: productPath(id), token: token}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProduct(ctx context.Context, token string, req model.ProductRequest) (*model.Product, error) {
	var out model.Product
	if err := c.do(ctx, call{op: "create_product", method: http.MethodPost, path: "/products", token: token, body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProduct(ctx context.Context, token string, id int64, req model.ProductRequest) (*model.Product, error) {
	var out model.Product
	if err := c.do(ctx, call{op: "update_product", method: http.MethodPut, path: productPath(id), token: token, body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProduct(ctx context.Context, token string, id int64) error {
	return c.do(ctx, call{op: "delete_product", method: http.MethodDelete, path: productPath(id), token: token}, nil)
}

func (c *Client) PlaceOrder(ctx context.Context, token string, req model.OrderRequest) (*model.Order, error) {
	var out model.Order
	if err := c.do(ctx, call{op: "place_order", method: http.MethodPost, path: "/orders", token: token, body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListMyOrders(ctx context.Context, token string) ([]model.Order, error) {
	var out []model.Order
	if err := c.do(ctx, call{op: "list_my_orders", method: http.MethodGet, path: "/orders/my", token: token}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListAllOrders(ctx context.Context, token string) ([]model.Order, error) {
	var out []model.Order
	if err := c.do(ctx, call{op: "list_all_orders", method: http.MethodGet, path: "/orders", token: token}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func productPath(id int64) string {
	return "/products/" + strconv.FormatInt(id, 10)
}

type call struct {
	op     string
	method string
	path   string
	token  string
	body   any
}

func (c *Client) do(ctx context.Context, in call, out any) (err error) {
	start := time.Now()
	status := 0
	defer func() {
		c.metrics.GatewayCall(metrics.GatewayMetric{
			Operation: in.op,
			Status:    status,
			Duration:  time.Since(start),
			Err:       err,
		})
		if err != nil {
			c.logger.DebugContext(ctx, "gateway call failed",
				"op", in.op, "status", status, "error", err)
		}
	}()

	req, err := c.newRequest(ctx, in)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := apperrors.FromContext(ctx.Err()); ctxErr != nil {
			return ctxErr
		}
		return apperrors.Wrap(err, apperrors.ErrCodeUpstream, "Service unavailable. Please try again later.")
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close gateway response body", "error", cerr)
		}
	}()
	status = resp.StatusCode

	if status < 200 || status > 299 {
		return apperrors.FromHTTPStatus(status, errorMessage(resp.Body))
	}
	if out == nil || status == http.StatusNoContent {
		return nil
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
		if errors.Is(decodeErr, io.EOF) {
			return nil
		}
		return apperrors.Wrap(decodeErr, apperrors.ErrCodeUpstream, "Invalid response from service.")
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, in call) (*http.Request, error) {
	var body io.Reader
	if in.body != nil {
		buf, err := json.Marshal(in.body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", in.op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, in.method, c.base.String()+in.path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", in.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if in.token != "" {
		req.Header.Set("Authorization", "Bearer "+in.token)
	}
	return req, nil
}

// errorMessage extracts a human message from an error body. It prefers "error", then
// "message", then a field→message validation map; plain text bodies are used as is.
func errorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}

	var body map[string]any
	if json.Unmarshal(raw, &body) != nil {
		text := strings.TrimSpace(string(raw))
		if strings.HasPrefix(text, "<") {
			return ""
		}
		return text
	}

	for _, key := range []string{"error", "message"} {
		if s, ok := body[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}

	var parts []string
	for _, field := range slices.Sorted(maps.Keys(body)) {
		if s, ok := body[field].(string); ok && s != "" {
			parts = append(parts, field+": "+s)
		}
	}
	return strings.Join(parts, "; ")
}
