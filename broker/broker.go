package broker

import (
	"context"
	"time"
)

// OrderSide is the direction of an order, not of a position: closing a long
// is a sell.
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// Status is the terminal state of an order. The log is append-only, so an
// order's status never changes in place; a cancel is a new log entry.
type Status string

const (
	StatusFilled    Status = "filled"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// OrderRequest asks an executor to place one order.
type OrderRequest struct {
	Symbol   string
	Side     OrderSide
	Quantity int
	Price    float64
	Time     time.Time
}

// Order is one entry in the append-only order log. Resubmitting after a
// cancel always mints a new ID; history is never rewritten.
type Order struct {
	ID       string
	Symbol   string
	Side     OrderSide
	Quantity int
	Price    float64
	Status   Status
	Time     time.Time
}

// AccountSnapshot is a pure read of executor-side account state.
type AccountSnapshot struct {
	Balance       float64
	Equity        float64
	OpenPositions int
}

// Executor places orders. The mock variant fills immediately inside a
// backtest; the live variant delegates to a broker API. Both expose the
// same Order shape.
type Executor interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (Order, error)
	Snapshot() AccountSnapshot
}
