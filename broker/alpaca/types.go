package alpaca

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Wire shapes for the Alpaca trading REST API. Prices and quantities arrive
// as JSON strings; they are parsed with decimal before any float conversion
// so a malformed quote fails loudly instead of rounding quietly.

type orderRequest struct {
	Symbol      string `json:"symbol"`
	Qty         string `json:"qty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
	LimitPrice  string `json:"limit_price,omitempty"`
}

type orderResponse struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Qty            string    `json:"qty"`
	FilledQty      string    `json:"filled_qty"`
	FilledAvgPrice string    `json:"filled_avg_price"`
	Side           string    `json:"side"`
	Status         string    `json:"status"`
	SubmittedAt    time.Time `json:"submitted_at"`
	FilledAt       *time.Time `json:"filled_at"`
}

type accountResponse struct {
	ID           string `json:"id"`
	Cash         string `json:"cash"`
	Equity       string `json:"equity"`
	BuyingPower  string `json:"buying_power"`
	Status       string `json:"status"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func parsePrice(field, s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	f, _ := d.Float64()
	return f, nil
}
