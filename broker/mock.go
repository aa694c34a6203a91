package broker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rustyeddy/stockbot/internal/id"
)

// MockExecutor fills every order immediately at the requested price with no
// slippage or partial fills. Orders land in per-symbol sublogs so parallel
// symbol workers never contend on one shared mutable log; the merged view is
// assembled only at aggregation time.
type MockExecutor struct {
	mu       sync.Mutex
	snapshot AccountSnapshot
	logs     map[string][]Order
}

func NewMockExecutor(initialBalance float64) *MockExecutor {
	return &MockExecutor{
		snapshot: AccountSnapshot{Balance: initialBalance, Equity: initialBalance},
		logs:     make(map[string][]Order),
	}
}

// PlaceOrder fills at req.Price and appends to the symbol's sublog.
func (m *MockExecutor) PlaceOrder(_ context.Context, req OrderRequest) (Order, error) {
	if req.Quantity <= 0 {
		return Order{}, &ExecError{Code: CodeRejected, Msg: "quantity must be positive"}
	}
	if req.Price <= 0 {
		return Order{}, &ExecError{Code: CodeRejected, Msg: "price must be positive"}
	}

	o := Order{
		ID:       id.New(),
		Symbol:   req.Symbol,
		Side:     req.Side,
		Quantity: req.Quantity,
		Price:    req.Price,
		Status:   StatusFilled,
		Time:     req.Time,
	}

	m.mu.Lock()
	m.logs[req.Symbol] = append(m.logs[req.Symbol], o)
	m.mu.Unlock()

	return o, nil
}

// Cancel appends a cancelled entry for the given order. The original fill
// record stays untouched; resubmission goes through PlaceOrder and mints a
// new ID.
func (m *MockExecutor) Cancel(_ context.Context, orderID string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for symbol, log := range m.logs {
		for _, o := range log {
			if o.ID == orderID {
				c := o
				c.Status = StatusCancelled
				m.logs[symbol] = append(m.logs[symbol], c)
				return c, nil
			}
		}
	}
	return Order{}, fmt.Errorf("cancel: order %q not found", orderID)
}

// Snapshot is a pure read; it never mutates state.
func (m *MockExecutor) Snapshot() AccountSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// SetSnapshot lets the owning engine publish account state after closes.
func (m *MockExecutor) SetSnapshot(s AccountSnapshot) {
	m.mu.Lock()
	m.snapshot = s
	m.mu.Unlock()
}

// Orders returns a copy of one symbol's sublog in append order.
func (m *MockExecutor) Orders(symbol string) []Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Order, len(m.logs[symbol]))
	copy(out, m.logs[symbol])
	return out
}

// AllOrders merges every sublog, sorted by ID. ULIDs are time-ordered, so
// this reconstructs submission order across symbols.
func (m *MockExecutor) AllOrders() []Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Order
	for _, log := range m.logs {
		out = append(out, log...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
