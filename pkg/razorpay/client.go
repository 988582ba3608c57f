package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Payment states reported by the gateway.
const (
	StatusCreated    = "created"
	StatusAuthorized = "authorized"
	StatusCaptured   = "captured"
	StatusRefunded   = "refunded"
	StatusFailed     = "failed"
)

var (
	// ErrNotFound is returned when the gateway does not know the payment or order.
	ErrNotFound = errors.New("razorpay: resource not found")
	// ErrRateLimited is returned on HTTP 429.
	ErrRateLimited = errors.New("razorpay: rate limit exceeded")
	// ErrTimeout is returned when a call exceeds its deadline.
	ErrTimeout = errors.New("razorpay: request timed out")
)

// APIError is a non-2xx gateway response
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("razorpay: request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("razorpay: %s (status %d)", e.Description, e.StatusCode)
}

// Payment is the subset of the gateway payment entity the service reads
type Payment struct {
	ID               string `json:"id"`
	Entity           string `json:"entity"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	OrderID          string `json:"order_id"`
	Method           string `json:"method"`
	ErrorCode        string `json:"error_code,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
	CreatedAt        int64  `json:"created_at"`
}

type collection struct {
	Count int       `json:"count"`
	Items []Payment `json:"items"`
}

// Client represents a payment gateway client
type Client struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	MockAPI   bool
	timeout   time.Duration
	client    *http.Client
}

// NewClient creates a new gateway client. timeout bounds every call.
func NewClient(baseURL, keyID, keySecret string, mockAPI bool, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		KeyID:     keyID,
		KeySecret: keySecret,
		MockAPI:   mockAPI,
		timeout:   timeout,
		client:    &http.Client{},
	}
}

// FetchPayment returns the current state of one payment
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if c.MockAPI {
		return mockPayment(paymentID, "")
	}
	var payment Payment
	if err := c.get(ctx, "/payments/"+url.PathEscape(paymentID), &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FetchOrderPayments returns every payment attempt made against an order
func (c *Client) FetchOrderPayments(ctx context.Context, orderID string) ([]Payment, error) {
	if c.MockAPI {
		p, err := mockPayment("pay_"+strings.TrimPrefix(orderID, "order_"), orderID)
		if err != nil {
			return nil, err
		}
		return []Payment{*p}, nil
	}
	var page collection
	if err := c.get(ctx, "/orders/"+url.PathEscape(orderID)+"/payments", &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// LatestOrderPayment returns the most recent payment attempt of an order
func (c *Client) LatestOrderPayment(ctx context.Context, orderID string) (*Payment, error) {
	payments, err := c.FetchOrderPayments(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, ErrNotFound
	}
	latest := payments[0]
	for _, p := range payments[1:] {
		if p.CreatedAt > latest.CreatedAt {
			latest = p
		}
	}
	return &latest, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 300:
		var envelope struct {
			Error APIError `json:"error"`
		}
		_ = json.Unmarshal(body, &envelope)
		envelope.Error.StatusCode = resp.StatusCode
		// The gateway answers unknown ids with 400 BAD_REQUEST_ERROR.
		if resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(envelope.Error.Description), "does not exist") {
			return ErrNotFound
		}
		return &envelope.Error
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return fmt.Errorf("razorpay: network error: %w", err)
}

// mockPayment derives a stable payment from its id: ids containing "missing"
// are unknown, "fail" fail, "refund" are refunded, everything else is captured.
func mockPayment(paymentID, orderID string) (*Payment, error) {
	lower := strings.ToLower(paymentID + orderID)
	status := StatusCaptured
	switch {
	case strings.Contains(lower, "missing"):
		return nil, ErrNotFound
	case strings.Contains(lower, "fail"):
		status = StatusFailed
	case strings.Contains(lower, "refund"):
		status = StatusRefunded
	case strings.Contains(lower, "pending"):
		status = StatusAuthorized
	}
	return &Payment{
		ID:       paymentID,
		Entity:   "payment",
		Currency: "INR",
		Status:   status,
		OrderID:  orderID,
	}, nil
}
