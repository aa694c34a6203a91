// Package alpaca is the live order-routing collaborator. It maps the Alpaca
// REST and streaming APIs onto the broker.Executor shape, translating every
// failure into the broker error taxonomy. The deterministic backtest core
// never touches this package.
package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rustyeddy/stockbot/broker"
)

const (
	// PaperURL is Alpaca's paper-trading environment.
	PaperURL = "https://paper-api.alpaca.markets"
	// LiveURL is Alpaca's live trading environment.
	LiveURL = "https://api.alpaca.markets"
)

// Client talks to the Alpaca trading API. It satisfies broker.Executor.
type Client struct {
	baseURL    string
	keyID      string
	secretKey  string
	httpClient *http.Client

	// Transient connectivity failures retry on a constant interval,
	// bounded. Auth failures and rejections never retry.
	retryInterval time.Duration
	maxRetries    uint64

	lastAccount broker.AccountSnapshot
}

// NewClient builds a client for the paper or live environment.
func NewClient(keyID, secretKey string, paper bool) *Client {
	baseURL := LiveURL
	if paper {
		baseURL = PaperURL
	}
	return &Client{
		baseURL:   baseURL,
		keyID:     keyID,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryInterval: 500 * time.Millisecond,
		maxRetries:    3,
	}
}

// PlaceOrder submits a limit order and maps the response into the shared
// Order shape. Broker errors come back as *broker.ExecError, never as a raw
// transport error.
func (c *Client) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.Order, error) {
	body := orderRequest{
		Symbol:      req.Symbol,
		Qty:         strconv.Itoa(req.Quantity),
		Side:        string(req.Side),
		Type:        "limit",
		TimeInForce: "day",
		LimitPrice:  strconv.FormatFloat(req.Price, 'f', -1, 64),
	}

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/v2/orders", body, &resp); err != nil {
		return broker.Order{}, err
	}

	price, err := parsePrice("filled_avg_price", resp.FilledAvgPrice)
	if err != nil {
		return broker.Order{}, &broker.ExecError{Code: broker.CodeRejected, Msg: err.Error(), Err: err}
	}
	if price == 0 {
		price = req.Price
	}

	o := broker.Order{
		ID:       resp.ID,
		Symbol:   resp.Symbol,
		Side:     broker.OrderSide(resp.Side),
		Quantity: req.Quantity,
		Price:    price,
		Status:   mapStatus(resp.Status),
		Time:     resp.SubmittedAt,
	}
	if resp.FilledAt != nil {
		o.Time = *resp.FilledAt
	}
	return o, nil
}

// CancelOrder cancels an open order. Resubmission afterwards creates a new
// broker-side order ID.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	return c.do(ctx, http.MethodDelete, "/v2/orders/"+orderID, nil, nil)
}

// GetAccount fetches balance and equity.
func (c *Client) GetAccount(ctx context.Context) (broker.AccountSnapshot, error) {
	var resp accountResponse
	if err := c.do(ctx, http.MethodGet, "/v2/account", nil, &resp); err != nil {
		return broker.AccountSnapshot{}, err
	}

	cash, err := parsePrice("cash", resp.Cash)
	if err != nil {
		return broker.AccountSnapshot{}, &broker.ExecError{Code: broker.CodeRejected, Msg: err.Error(), Err: err}
	}
	equity, err := parsePrice("equity", resp.Equity)
	if err != nil {
		return broker.AccountSnapshot{}, &broker.ExecError{Code: broker.CodeRejected, Msg: err.Error(), Err: err}
	}

	snap := broker.AccountSnapshot{Balance: cash, Equity: equity}
	c.lastAccount = snap
	return snap, nil
}

// Snapshot returns the most recently fetched account state.
func (c *Client) Snapshot() broker.AccountSnapshot {
	return c.lastAccount
}

// do runs one API call with bounded retries on transient failures.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	op := func() error {
		return c.doOnce(ctx, method, path, in, out)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryInterval), c.maxRetries),
		ctx,
	)
	return backoff.Retry(op, policy)
}

func (c *Client) doOnce(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("marshal request: %w", err))
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.keyID)
	req.Header.Set("APCA-API-SECRET-KEY", c.secretKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors are transient; let backoff retry, but surface a
		// typed error once retries are exhausted.
		return &broker.ExecError{Code: broker.CodeConnectivity, Msg: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(&broker.ExecError{Code: broker.CodeConnectivity, Msg: "decode response", Err: err})
		}
		return nil
	}

	execErr := mapHTTPError(resp)
	if execErr.Code == broker.CodeConnectivity {
		return execErr // transient, retryable
	}
	return backoff.Permanent(execErr)
}

// mapHTTPError translates an Alpaca error response into the taxonomy.
func mapHTTPError(resp *http.Response) *broker.ExecError {
	var ae apiError
	_ = json.NewDecoder(resp.Body).Decode(&ae)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// 403 also covers insufficient buying power (code 40310000).
		if ae.Code == 40310000 {
			return &broker.ExecError{Code: broker.CodeInsufficientFunds, Msg: ae.Message}
		}
		return &broker.ExecError{Code: broker.CodeAuthFailure, Msg: ae.Message}
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return &broker.ExecError{Code: broker.CodeRejected, Msg: ae.Message}
	case resp.StatusCode >= 500:
		return &broker.ExecError{Code: broker.CodeConnectivity, Msg: fmt.Sprintf("server error %d", resp.StatusCode)}
	default:
		return &broker.ExecError{Code: broker.CodeRejected, Msg: fmt.Sprintf("status %d: %s", resp.StatusCode, ae.Message)}
	}
}

func mapStatus(s string) broker.Status {
	switch s {
	case "filled", "partially_filled", "new", "accepted", "pending_new":
		return broker.StatusFilled
	case "canceled", "pending_cancel", "expired":
		return broker.StatusCancelled
	default:
		return broker.StatusRejected
	}
}
