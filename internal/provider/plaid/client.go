package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10

	exchangePath = "/item/public_token/exchange"
	itemPath     = "/item/get"
	accountsPath = "/accounts/get"
	syncPath     = "/transactions/sync"
	removePath   = "/item/remove"
)

type Config struct {
	BaseURL           string
	ClientID          string
	Secret            string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client talks JSON over HTTP to the aggregation provider. Every call gets
// its own timeout and waits on a shared rate limiter.
type Client struct {
	httpClient *http.Client
	cfg        Config
	limiter    *rate.Limiter
}

var _ Provider = (*Client)(nil)

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	return &Client{
		httpClient: &http.Client{},
		cfg:        cfg,
		limiter:    rate.NewLimiter(limit, burst),
	}
}

func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResponse, error) {
	var resp ExchangeResponse
	if err := c.post(ctx, exchangePath, map[string]any{"public_token": publicToken}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetItem(ctx context.Context, accessToken string) (*ItemResponse, error) {
	var resp ItemResponse
	if err := c.post(ctx, itemPath, map[string]any{"access_token": accessToken}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetAccounts(ctx context.Context, accessToken string) ([]Account, error) {
	var resp accountsResponse
	if err := c.post(ctx, accountsPath, map[string]any{"access_token": accessToken}, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

func (c *Client) SyncTransactions(ctx context.Context, accessToken, cursor string, count int) (*SyncResponse, error) {
	body := map[string]any{
		"access_token": accessToken,
		"count":        count,
	}
	if cursor != "" {
		body["cursor"] = cursor
	}
	var resp SyncResponse
	if err := c.post(ctx, syncPath, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) RemoveItem(ctx context.Context, accessToken string) error {
	return c.post(ctx, removePath, map[string]any{"access_token": accessToken}, nil)
}

func (c *Client) post(ctx context.Context, path string, body map[string]any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("plaid %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body["client_id"] = c.cfg.ClientID
	body["secret"] = c.cfg.Secret
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("plaid %s: encode request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("plaid %s: create request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("plaid %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.ErrorCode == "" {
			apiErr.ErrorType = "API_ERROR"
			apiErr.ErrorCode = http.StatusText(resp.StatusCode)
			apiErr.ErrorMessage = strings.TrimSpace(string(raw))
		}
		return classify(apiErr)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("plaid %s: decode response: %w", path, err)
	}
	return nil
}
