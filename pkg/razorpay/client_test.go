package razorpay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "/payments/pay_123", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"pay_123","entity":"payment","amount":50000,"currency":"INR","status":"captured","order_id":"order_9"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", false, time.Second)
	p, err := c.FetchPayment(context.Background(), "pay_123")
	require.NoError(t, err)
	assert.Equal(t, StatusCaptured, p.Status)
	assert.Equal(t, "order_9", p.OrderID)
	assert.Equal(t, int64(50000), p.Amount)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "not found", status: http.StatusNotFound, want: ErrNotFound},
		{name: "rate limited", status: http.StatusTooManyRequests, want: ErrRateLimited},
		{
			name:   "unknown id",
			status: http.StatusBadRequest,
			body:   `{"error":{"code":"BAD_REQUEST_ERROR","description":"The id provided does not exist"}}`,
			want:   ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "k", "s", false, time.Second).FetchPayment(context.Background(), "pay_1")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"Authentication failed"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k", "s", false, time.Second).FetchPayment(context.Background(), "pay_1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "Authentication failed")
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k", "s", false, 20*time.Millisecond).FetchPayment(context.Background(), "pay_1")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestLatestOrderPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/order_1/payments", r.URL.Path)
		_, _ = w.Write([]byte(`{"entity":"collection","count":2,"items":[
			{"id":"pay_old","status":"failed","created_at":100},
			{"id":"pay_new","status":"captured","created_at":200}
		]}`))
	}))
	defer srv.Close()

	p, err := NewClient(srv.URL, "k", "s", false, time.Second).LatestOrderPayment(context.Background(), "order_1")
	require.NoError(t, err)
	assert.Equal(t, "pay_new", p.ID)
}

func TestLatestOrderPaymentEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"entity":"collection","count":0,"items":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k", "s", false, time.Second).LatestOrderPayment(context.Background(), "order_1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockMode(t *testing.T) {
	c := NewClient("", "", "", true, 0)

	p, err := c.FetchPayment(context.Background(), "pay_ok")
	require.NoError(t, err)
	assert.Equal(t, StatusCaptured, p.Status)

	p, err = c.FetchPayment(context.Background(), "pay_fail_1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, p.Status)

	_, err = c.FetchPayment(context.Background(), "pay_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
