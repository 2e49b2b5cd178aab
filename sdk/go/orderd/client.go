package orderd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the orderd server (e.g. "http://localhost:8080").
	BaseURL string

	// ClientID identifies this API client for authentication.
	ClientID string

	// APIKey is the secret used to obtain a JWT token.
	APIKey string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with a 30-second timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the orderd API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL  string
	client   *http.Client
	tokenMgr *tokenManager
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL, ClientID, or APIKey is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("orderd: BaseURL is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("orderd: ClientID is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("orderd: APIKey is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:  baseURL,
		client:   httpClient,
		tokenMgr: newTokenManager(baseURL, cfg.ClientID, cfg.APIKey, httpClient),
	}, nil
}

// CreateOrder creates a new order. The server assigns the ID and forces the
// initial status to pending_payment. Requires the clerk role or above.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	var resp Order
	if err := c.put(ctx, "/v1/orders", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetOrder retrieves a single order by ID.
func (c *Client) GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	var resp Order
	if err := c.get(ctx, "/v1/orders/"+orderID.String(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListOrders retrieves a filtered, sorted page of orders together with the
// total and filtered-total counts. Nil opts apply the server defaults.
func (c *Client) ListOrders(ctx context.Context, opts *ListOrdersOptions) (*OrdersPage, error) {
	params := url.Values{}
	if opts != nil {
		if opts.Status != "" {
			params.Set("status", opts.Status)
		}
		if opts.Customer != "" {
			params.Set("customer", opts.Customer)
		}
		if opts.SortBy != "" {
			params.Set("sortby", opts.SortBy)
		}
		if opts.SortDirection != "" {
			params.Set("sortdirection", opts.SortDirection)
		}
		if opts.Limit != nil {
			params.Set("limit", strconv.Itoa(*opts.Limit))
		}
		if opts.Offset != nil {
			params.Set("offset", strconv.Itoa(*opts.Offset))
		}
	}

	path := "/v1/orders"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	// The pagination counts live beside data in the envelope, so the page
	// is decoded from the whole body rather than the data field.
	var page OrdersPage
	if err := c.getRaw(ctx, path, &page); err != nil {
		return nil, err
	}
	if page.Orders == nil {
		page.Orders = []Order{}
	}
	return &page, nil
}

// UpdateOrder replaces every mutable field of an order. Requires the clerk
// role or above.
func (c *Client) UpdateOrder(ctx context.Context, orderID uuid.UUID, req UpdateOrderRequest) (*Order, error) {
	var resp Order
	if err := c.post(ctx, "/v1/orders/"+orderID.String(), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PatchOrder applies a partial update. Only non-nil patch fields are
// touched; explicit zero values are applied, not skipped. Requires the
// clerk role or above.
func (c *Client) PatchOrder(ctx context.Context, orderID uuid.UUID, patch OrderPatch) (*Order, error) {
	var resp Order
	if err := c.patch(ctx, "/v1/orders/"+orderID.String(), patch, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteOrder removes an order and its payments. Requires the admin role.
// Returns nil on success (204 No Content).
func (c *Client) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	return c.doDelete(ctx, "/v1/orders/"+orderID.String(), nil)
}

// CapturePayment settles an order. The amount must match the order total
// exactly: underpayment fails with 402, overpayment with 400. Requires the
// clerk role or above.
func (c *Client) CapturePayment(ctx context.Context, orderID uuid.UUID, amountCents int64, method string) (*Payment, error) {
	body := map[string]any{"amount_cents": amountCents, "method": method}
	var resp Payment
	if err := c.patch(ctx, "/v1/orders/"+orderID.String()+"/capture", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListPayments retrieves every payment recorded against an order, oldest
// first. An order with no payments yields an empty slice; an unknown order
// fails with 404.
func (c *Client) ListPayments(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	var resp []Payment
	if err := c.get(ctx, "/v1/orders/"+orderID.String()+"/payments", &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		resp = []Payment{}
	}
	return resp, nil
}

// Health checks the server's health status. This endpoint does not require
// authentication and will work even if the client has invalid credentials.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.getNoAuth(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// apiEnvelope is the server's standard response wrapper.
type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// apiErrorEnvelope is the server's standard error response wrapper.
type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	return c.send(ctx, http.MethodPost, path, body, dest)
}

func (c *Client) put(ctx context.Context, path string, body any, dest any) error {
	return c.send(ctx, http.MethodPut, path, body, dest)
}

func (c *Client) patch(ctx context.Context, path string, body any, dest any) error {
	return c.send(ctx, http.MethodPatch, path, body, dest)
}

func (c *Client) send(ctx context.Context, method, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("orderd: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("orderd: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(ctx, req, dest, true)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("orderd: create request: %w", err)
	}

	return c.doRequest(ctx, req, dest, true)
}

// getRaw decodes the entire response body into dest instead of unwrapping
// the data field. Used for paginated responses.
func (c *Client) getRaw(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("orderd: create request: %w", err)
	}

	return c.doRequest(ctx, req, dest, false)
}

func (c *Client) doDelete(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("orderd: create request: %w", err)
	}

	return c.doRequest(ctx, req, dest, true)
}

func (c *Client) getNoAuth(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("orderd: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("orderd: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest, true)
}

func (c *Client) doRequest(ctx context.Context, req *http.Request, dest any, unwrap bool) error {
	token, err := c.tokenMgr.getToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("orderd: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest, unwrap)
}

func handleResponse(resp *http.Response, dest any, unwrap bool) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("orderd: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	// 204 No Content — nothing to decode.
	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return nil
	}

	if !unwrap {
		return json.Unmarshal(bodyBytes, dest)
	}

	// Unwrap the server's { "data": ... } envelope.
	var envelope apiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return fmt.Errorf("orderd: decode response envelope: %w", err)
	}

	if envelope.Data == nil {
		// Fallback: some endpoints may not wrap in "data".
		return json.Unmarshal(bodyBytes, dest)
	}

	return json.Unmarshal(envelope.Data, dest)
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}
