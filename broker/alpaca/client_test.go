package alpaca

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/stockbot/broker"
)

func testClient(baseURL string) *Client {
	return &Client{
		baseURL:       baseURL,
		keyID:         "key",
		secretKey:     "secret",
		httpClient:    &http.Client{Timeout: time.Second},
		retryInterval: time.Millisecond,
		maxRetries:    2,
	}
}

func orderReq() broker.OrderRequest {
	return broker.OrderRequest{
		Symbol:   "AAPL",
		Side:     broker.Buy,
		Quantity: 100,
		Price:    150.25,
	}
}

func TestPlaceOrder_Success(t *testing.T) {
	t.Parallel()

	filledAt := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/orders", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("APCA-API-KEY-ID"))
		assert.Equal(t, "secret", r.Header.Get("APCA-API-SECRET-KEY"))

		var body orderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "AAPL", body.Symbol)
		assert.Equal(t, "100", body.Qty)
		assert.Equal(t, "buy", body.Side)
		assert.Equal(t, "limit", body.Type)
		assert.Equal(t, "150.25", body.LimitPrice)

		json.NewEncoder(w).Encode(orderResponse{
			ID:             "ord-1",
			Symbol:         "AAPL",
			Qty:            "100",
			FilledQty:      "100",
			FilledAvgPrice: "150.30",
			Side:           "buy",
			Status:         "filled",
			SubmittedAt:    filledAt.Add(-time.Second),
			FilledAt:       &filledAt,
		})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	o, err := c.PlaceOrder(context.Background(), orderReq())
	require.NoError(t, err)

	assert.Equal(t, "ord-1", o.ID)
	assert.Equal(t, broker.StatusFilled, o.Status)
	assert.Equal(t, broker.Buy, o.Side)
	assert.InDelta(t, 150.30, o.Price, 1e-9)
	assert.True(t, o.Time.Equal(filledAt))
}

func apiErrServer(status, code int, msg string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(apiError{Code: code, Message: msg})
	}))
}

func TestPlaceOrder_ErrorTaxonomy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		code   int
		want   broker.ErrorCode
	}{
		{"bad credentials", http.StatusUnauthorized, 40110000, broker.CodeAuthFailure},
		{"forbidden", http.StatusForbidden, 0, broker.CodeAuthFailure},
		{"insufficient buying power", http.StatusForbidden, 40310000, broker.CodeInsufficientFunds},
		{"unprocessable order", http.StatusUnprocessableEntity, 42210000, broker.CodeRejected},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := apiErrServer(tt.status, tt.code, tt.name)
			defer srv.Close()

			c := testClient(srv.URL)
			_, err := c.PlaceOrder(context.Background(), orderReq())
			require.Error(t, err)
			assert.True(t, broker.IsCode(err, tt.want), "got %v", err)
		})
	}
}

// 5xx responses retry on the constant interval; a server that recovers
// within the retry budget still completes the call.
func TestServerErrorRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(accountResponse{Cash: "100000", Equity: "101500", Status: "ACTIVE"})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	snap, err := c.GetAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.InDelta(t, 100_000.0, snap.Balance, 1e-9)
	assert.InDelta(t, 101_500.0, snap.Equity, 1e-9)

	// Snapshot reports the last fetched state without another round trip.
	assert.InDelta(t, 100_000.0, c.Snapshot().Balance, 1e-9)
}

// A server that never recovers exhausts the retry budget and surfaces the
// connectivity code.
func TestServerErrorExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.GetAccount(context.Background())
	require.Error(t, err)
	assert.True(t, broker.IsCode(err, broker.CodeConnectivity))
	assert.Equal(t, int32(3), calls.Load(), "initial call plus maxRetries")
}

// Auth failures never retry; one response is final.
func TestAuthFailureDoesNotRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(apiError{Code: 40110000, Message: "access key verification failed"})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.PlaceOrder(context.Background(), orderReq())
	require.Error(t, err)
	assert.True(t, broker.IsCode(err, broker.CodeAuthFailure))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCancelOrder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/v2/orders/ord-1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	assert.NoError(t, c.CancelOrder(context.Background(), "ord-1"))
}

// An accepted-but-unfilled order reports the limit price, not zero.
func TestPlaceOrder_UnfilledUsesLimitPrice(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(orderResponse{
			ID:     "ord-2",
			Symbol: "AAPL",
			Side:   "buy",
			Status: "new",
		})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	o, err := c.PlaceOrder(context.Background(), orderReq())
	require.NoError(t, err)
	assert.InDelta(t, 150.25, o.Price, 1e-9)
	assert.Equal(t, broker.StatusFilled, o.Status)
}

func TestMapStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, broker.StatusFilled, mapStatus("partially_filled"))
	assert.Equal(t, broker.StatusCancelled, mapStatus("expired"))
	assert.Equal(t, broker.StatusRejected, mapStatus("rejected"))
	assert.Equal(t, broker.StatusRejected, mapStatus("stopped"))
}

func TestParsePrice(t *testing.T) {
	t.Parallel()

	v, err := parsePrice("cash", "123.456")
	require.NoError(t, err)
	assert.InDelta(t, 123.456, v, 1e-9)

	v, err = parsePrice("cash", "")
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = parsePrice("cash", "not-a-number")
	assert.Error(t, err)
}
