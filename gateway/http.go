package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxResponseSize is the maximum allowed response size from the backend (10MB)
const maxResponseSize = 10 * 1024 * 1024

// defaultTimeout bounds each remote attempt; a timeout is treated exactly
// like any other network failure.
const defaultTimeout = 10 * time.Second

// tracerName identifies gateway spans
const tracerName = "github.com/trendmart/commerce-sync/gateway"

// ErrConfigMissingBaseURL indicates the gateway base URL was not set
var ErrConfigMissingBaseURL = errors.New("gateway: base URL is required")

// TokenSource supplies the current bearer token, or "" when anonymous
type TokenSource func() string

// Config holds HTTP gateway settings
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Validate checks the configuration and applies defaults
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("gateway: invalid base URL %q", c.BaseURL)
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return nil
}

// HTTPGateway implements Gateway against the marketplace REST backend
type HTTPGateway struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	tracer     trace.Tracer
}

// NewHTTPGateway creates a gateway client. tokens may be nil for a client
// that only ever operates anonymously.
func NewHTTPGateway(cfg Config, tokens TokenSource) (*HTTPGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &HTTPGateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		tokens: tokens,
		tracer: otel.Tracer(tracerName),
	}, nil
}

// FetchCart returns the current server-side cart
func (g *HTTPGateway) FetchCart(ctx context.Context) (*CartSnapshot, error) {
	body, err := g.doRequest(ctx, "cart.fetch", http.MethodGet, "/cart", nil)
	if err != nil {
		return nil, err
	}
	return decodeCartSnapshot(body)
}

// AddCartItem adds quantity of a product to the server-side cart
func (g *HTTPGateway) AddCartItem(ctx context.Context, input AddCartItemInput) error {
	_, err := g.doRequest(ctx, "cart.add_item", http.MethodPost, "/cart/items", input)
	return err
}

// UpdateCartItem replaces the quantity of a cart line
func (g *HTTPGateway) UpdateCartItem(ctx context.Context, itemID string, quantity int) error {
	payload := map[string]int{"quantity": quantity}
	_, err := g.doRequest(ctx, "cart.update_item", http.MethodPatch, "/cart/items/"+url.PathEscape(itemID), payload)
	return err
}

// RemoveCartItem removes a cart line
func (g *HTTPGateway) RemoveCartItem(ctx context.Context, itemID string) error {
	_, err := g.doRequest(ctx, "cart.remove_item", http.MethodDelete, "/cart/items/"+url.PathEscape(itemID), nil)
	return err
}

// ClearCart empties the server-side cart
func (g *HTTPGateway) ClearCart(ctx context.Context) error {
	_, err := g.doRequest(ctx, "cart.clear", http.MethodDelete, "/cart", nil)
	return err
}

// FetchFavorites returns the current server-side favorites
func (g *HTTPGateway) FetchFavorites(ctx context.Context) ([]FavoriteEntry, error) {
	body, err := g.doRequest(ctx, "favorites.fetch", http.MethodGet, "/favorites", nil)
	if err != nil {
		return nil, err
	}
	return decodeFavorites(body)
}

// AddFavorite marks a product as favorite
func (g *HTTPGateway) AddFavorite(ctx context.Context, productID string) error {
	payload := map[string]string{"product_id": productID}
	_, err := g.doRequest(ctx, "favorites.add", http.MethodPost, "/favorites", payload)
	return err
}

// RemoveFavorite unmarks a product
func (g *HTTPGateway) RemoveFavorite(ctx context.Context, productID string) error {
	_, err := g.doRequest(ctx, "favorites.remove", http.MethodDelete, "/favorites/"+url.PathEscape(productID), nil)
	return err
}

// MergeSession associates an anonymous session with the current account
func (g *HTTPGateway) MergeSession(ctx context.Context, sessionID string) error {
	payload := map[string]string{"session_id": sessionID}
	_, err := g.doRequest(ctx, "session.merge", http.MethodPost, "/session/merge", payload)
	return err
}

// RecordProductView reports a product view for the given session
func (g *HTTPGateway) RecordProductView(ctx context.Context, sessionID, productID string) error {
	payload := map[string]string{
		"session_id": sessionID,
		"product_id": productID,
	}
	_, err := g.doRequest(ctx, "session.record_view", http.MethodPost, "/session/views", payload)
	return err
}

// doRequest performs one HTTP round trip to the backend
func (g *HTTPGateway) doRequest(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	ctx, span := g.tracer.Start(ctx, "gateway."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", path),
		),
	)
	defer span.End()

	body, err := g.roundTrip(ctx, method, path, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return body, nil
}

func (g *HTTPGateway) roundTrip(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("gateway: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.tokens != nil {
		if token := g.tokens(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrRequestFailed, resp.StatusCode)
	}

	return body, nil
}

// Ensure HTTPGateway implements Gateway
var _ Gateway = (*HTTPGateway)(nil)
