package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rustyeddy/stockbot/broker"
)

// StreamURL is the market-data websocket endpoint (IEX feed).
const StreamURL = "wss://stream.data.alpaca.markets/v2/iex"

// Quote is one bid/ask update from the stream.
type Quote struct {
	Symbol string
	Bid    float64
	Ask    float64
	Time   time.Time
}

// Stream maintains one websocket subscription for live quotes. Quotes are
// delivered on a channel; the reader goroutine owns the connection.
type Stream struct {
	conn   *websocket.Conn
	quotes chan Quote

	mu     sync.Mutex
	closed bool
	err    error
}

type streamMsg struct {
	Type    string  `json:"T"`
	Symbol  string  `json:"S"`
	Bid     float64 `json:"bp"`
	Ask     float64 `json:"ap"`
	Time    string  `json:"t"`
	Message string  `json:"msg"`
	Code    int     `json:"code"`
}

// DialStream connects, authenticates, and starts the reader goroutine.
func DialStream(ctx context.Context, url, keyID, secretKey string) (*Stream, error) {
	if url == "" {
		url = StreamURL
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, &broker.ExecError{Code: broker.CodeConnectivity, Msg: "dial stream", Err: err}
	}

	s := &Stream{
		conn:   conn,
		quotes: make(chan Quote, 256),
	}

	auth := map[string]string{"action": "auth", "key": keyID, "secret": secretKey}
	if err := conn.WriteJSON(auth); err != nil {
		conn.Close()
		return nil, &broker.ExecError{Code: broker.CodeConnectivity, Msg: "send auth", Err: err}
	}
	if err := s.awaitAuth(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	go s.readLoop()
	return s, nil
}

// awaitAuth reads control frames until the server confirms or rejects auth.
func (s *Stream) awaitAuth(ctx context.Context) error {
	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetReadDeadline(deadline)
	defer s.conn.SetReadDeadline(time.Time{})

	for {
		var msgs []streamMsg
		if err := s.conn.ReadJSON(&msgs); err != nil {
			return &broker.ExecError{Code: broker.CodeConnectivity, Msg: "read auth response", Err: err}
		}
		for _, m := range msgs {
			switch {
			case m.Type == "success" && m.Message == "authenticated":
				return nil
			case m.Type == "error":
				return &broker.ExecError{Code: broker.CodeAuthFailure, Msg: fmt.Sprintf("stream auth: %s (code %d)", m.Message, m.Code)}
			}
		}
	}
}

// Subscribe asks for quote updates on the given symbols.
func (s *Stream) Subscribe(symbols []string) error {
	sub := map[string]any{"action": "subscribe", "quotes": symbols}
	if err := s.conn.WriteJSON(sub); err != nil {
		return &broker.ExecError{Code: broker.CodeConnectivity, Msg: "subscribe", Err: err}
	}
	return nil
}

// Quotes is the delivery channel. It closes when the stream ends; check Err
// afterwards.
func (s *Stream) Quotes() <-chan Quote { return s.quotes }

// Err returns the terminal stream error, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) readLoop() {
	defer close(s.quotes)

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			if !s.closed {
				s.err = &broker.ExecError{Code: broker.CodeConnectivity, Msg: "stream read", Err: err}
			}
			s.mu.Unlock()
			return
		}

		var msgs []streamMsg
		if err := json.Unmarshal(raw, &msgs); err != nil {
			continue // control frames we don't care about
		}

		for _, m := range msgs {
			if m.Type != "q" {
				continue
			}
			t, err := time.Parse(time.RFC3339Nano, m.Time)
			if err != nil {
				t = time.Now().UTC()
			}
			s.quotes <- Quote{Symbol: m.Symbol, Bid: m.Bid, Ask: m.Ask, Time: t}
		}
	}
}

// Close shuts the connection down and ends the reader goroutine.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.conn.Close()
}
