package billingclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"tg-content-assistant/internal/domain"
	"tg-content-assistant/internal/infra/metrics"
)

// Client обращается к внешнему сервису баланса генераций.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

type Option func(*Client)

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = timeout
	}
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type balanceResponse struct {
	OwnerID int64 `json:"owner_id"`
	Amount  int64 `json:"amount"`
}

type debitRequest struct {
	OwnerID int64 `json:"owner_id"`
	Amount  int64 `json:"amount"`
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "http"
	}
	client := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Balance возвращает число доступных генераций.
func (c *Client) Balance(ctx context.Context, ownerID int64) (int64, error) {
	var resp balanceResponse
	endpoint := fmt.Sprintf("/api/v1/balances/%d", ownerID)
	if err := c.get(ctx, "balance_get", endpoint, &resp); err != nil {
		return 0, err
	}
	return resp.Amount, nil
}

// Debit списывает генерации; при нехватке возвращает domain.ErrInsufficientBalance.
func (c *Client) Debit(ctx context.Context, ownerID, amount int64) error {
	return c.post(ctx, "balance_debit", "/api/v1/balances/debit", debitRequest{OwnerID: ownerID, Amount: amount}, nil)
}

func (c *Client) get(ctx context.Context, op, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(op, req, out)
}

func (c *Client) post(ctx context.Context, op, endpoint string, body any, out any) error {
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	return c.do(op, req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	resolved := *c.baseURL
	basePath := strings.TrimSuffix(c.baseURL.Path, "/")
	resolved.Path = path.Clean(basePath + endpoint)
	if !strings.HasSuffix(endpoint, "/") && strings.HasSuffix(resolved.Path, "/") {
		resolved.Path = strings.TrimSuffix(resolved.Path, "/")
	}
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, resolved.String(), buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(op string, req *http.Request, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveNetworkRequest("billing", op, req.URL.Host, start, err)
	}()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("billing api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr apiError
		data, readErr := io.ReadAll(resp.Body)
		if readErr == nil && len(data) > 0 {
			_ = json.Unmarshal(data, &apiErr)
		}
		if apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(data))
		}
		return mapAPIError(resp.StatusCode, apiErr)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func mapAPIError(status int, err apiError) error {
	switch err.Code {
	case "insufficient_funds":
		return domain.ErrInsufficientBalance
	case "account_not_found":
		return fmt.Errorf("billing api: %w", domain.ErrNotFound)
	case "invalid_request":
		return fmt.Errorf("billing api invalid request: %s", err.Error)
	case "":
		return fmt.Errorf("billing api error: status=%d message=%s", status, err.Error)
	default:
		return fmt.Errorf("billing api error [%s]: %s", err.Code, err.Error)
	}
}

var _ domain.Balance = (*Client)(nil)
