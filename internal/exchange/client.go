// Package exchange implements a venue-agnostic REST trading connector
// satisfying internal/execution.ExchangeConnector:
//   - CreateOrder:      POST   /orders      — place a new order
//   - CancelOrder:      DELETE /orders/{id} — cancel an order by ID
//   - FetchOrder:       GET    /orders/{id} — fetch a single order
//   - FetchOpenOrders:  GET    /orders      — list open orders for a symbol
//   - FetchPositions:   GET    /positions   — list current positions
//   - FetchBalance:     GET    /balance     — fetch available account balance
//
// Every request is rate-limited via per-category TokenBuckets and
// authenticated with HMAC headers. Requests are retried on transport errors
// and 5xx responses, except order creation (POST), which is never retried.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"tradefabric/internal/config"
	"tradefabric/pkg/types"
)

// Client is a generic REST venue client. It wraps a resty HTTP client with
// rate limiting, retry, and HMAC auth, and implements
// internal/execution.ExchangeConnector.
type Client struct {
	http   *resty.Client
	auth   *Auth
	rl     *RateLimiter
	name   string
	logger *slog.Logger
}

// NewClient creates a REST client with rate limiting and retry.
func NewClient(cfg config.ExchangeConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(maxRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r != nil && r.Request != nil && r.Request.Method == http.MethodPost {
				return false
			}
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		auth:   NewAuth(cfg),
		rl:     NewRateLimiter(),
		name:   cfg.Name,
		logger: logger,
	}
}

// Initialize verifies connectivity and credentials by fetching the account
// balance once. Venues that need a handshake beyond auth headers would do
// it here; this venue has none.
func (c *Client) Initialize(ctx context.Context) error {
	if _, err := c.FetchBalance(ctx); err != nil {
		return fmt.Errorf("initialize %s connector: %w", c.name, err)
	}
	return nil
}

// Close does nothing and returns nil: resty has no explicit close. It
// satisfies the interface for symmetry with venues that hold a persistent
// connection (e.g. a websocket leg).
func (c *Client) Close(ctx context.Context) error {
	return nil
}

// CreateOrder submits a new order.
func (c *Client) CreateOrder(ctx context.Context, params types.OrderParams) (types.Order, error) {
	if err := c.rl.Order.Wait(ctx); err != nil {
		return types.Order{}, err
	}

	bodyBytes, err := json.Marshal(params)
	if err != nil {
		return types.Order{}, fmt.Errorf("marshal order: %w", err)
	}
	body := string(bodyBytes)
	headers, err := c.auth.Headers(http.MethodPost, "/orders", body)
	if err != nil {
		return types.Order{}, fmt.Errorf("sign request: %w", err)
	}

	var result types.Order
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(params).
		SetResult(&result).
		Post("/orders")
	if err != nil {
		return types.Order{}, fmt.Errorf("create order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return types.Order{}, fmt.Errorf("create order: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Info("order created", "symbol", params.Symbol, "side", params.Side, "order_id", result.ID)
	return result, nil
}

// CancelOrder cancels a single order by ID.
func (c *Client) CancelOrder(ctx context.Context, id, symbol string) error {
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return err
	}

	path := fmt.Sprintf("/orders/%s", id)
	headers, err := c.auth.Headers(http.MethodDelete, path, "")
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParam("symbol", symbol).
		Delete(path)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusNoContent {
		return fmt.Errorf("cancel order: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Info("order cancelled", "order_id", id, "symbol", symbol)
	return nil
}

// FetchOrder fetches a single order's current state.
func (c *Client) FetchOrder(ctx context.Context, id, symbol string) (types.Order, error) {
	if err := c.rl.Query.Wait(ctx); err != nil {
		return types.Order{}, err
	}

	path := fmt.Sprintf("/orders/%s", id)
	headers, err := c.auth.Headers(http.MethodGet, path, "")
	if err != nil {
		return types.Order{}, fmt.Errorf("sign request: %w", err)
	}

	var result types.Order
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParam("symbol", symbol).
		SetResult(&result).
		Get(path)
	if err != nil {
		return types.Order{}, fmt.Errorf("fetch order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.Order{}, fmt.Errorf("fetch order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// FetchOpenOrders lists open orders for a symbol.
func (c *Client) FetchOpenOrders(ctx context.Context, symbol string) ([]types.Order, error) {
	if err := c.rl.Query.Wait(ctx); err != nil {
		return nil, err
	}

	headers, err := c.auth.Headers(http.MethodGet, "/orders", "")
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	var result []types.Order
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParam("symbol", symbol).
		SetQueryParam("status", "open").
		SetResult(&result).
		Get("/orders")
	if err != nil {
		return nil, fmt.Errorf("fetch open orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetch open orders: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// FetchPositions lists current positions, optionally filtered to symbols.
func (c *Client) FetchPositions(ctx context.Context, symbols []string) ([]types.Position, error) {
	if err := c.rl.Query.Wait(ctx); err != nil {
		return nil, err
	}

	headers, err := c.auth.Headers(http.MethodGet, "/positions", "")
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeaders(headers)
	if len(symbols) > 0 {
		req = req.SetQueryParam("symbols", joinComma(symbols))
	}

	var result []types.Position
	resp, err := req.SetResult(&result).Get("/positions")
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetch positions: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// FetchBalance fetches the account's available balance.
func (c *Client) FetchBalance(ctx context.Context) (decimal.Decimal, error) {
	if err := c.rl.Query.Wait(ctx); err != nil {
		return decimal.Zero, err
	}

	headers, err := c.auth.Headers(http.MethodGet, "/balance", "")
	if err != nil {
		return decimal.Zero, fmt.Errorf("sign request: %w", err)
	}

	var result struct {
		Available decimal.Decimal `json:"available"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Get("/balance")
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch balance: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return decimal.Zero, fmt.Errorf("fetch balance: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result.Available, nil
}

func joinComma(items []string) string {
	out := items[0]
	for _, s := range items[1:] {
		out += "," + s
	}
	return out
}
