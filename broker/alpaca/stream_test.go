package alpaca

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/stockbot/broker"
)

var upgrader = websocket.Upgrader{}

// wsServer upgrades one connection and hands it to the handler.
func wsServer(t *testing.T, handle func(*websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialStream_DeliversQuotes(t *testing.T) {
	t.Parallel()

	url := wsServer(t, func(conn *websocket.Conn) {
		var auth map[string]string
		require.NoError(t, conn.ReadJSON(&auth))
		assert.Equal(t, "auth", auth["action"])
		assert.Equal(t, "key", auth["key"])

		require.NoError(t, conn.WriteJSON([]streamMsg{{Type: "success", Message: "authenticated"}}))

		var sub map[string]any
		require.NoError(t, conn.ReadJSON(&sub))
		assert.Equal(t, "subscribe", sub["action"])

		require.NoError(t, conn.WriteJSON([]streamMsg{
			{Type: "subscription"}, // control frame, ignored
			{Type: "q", Symbol: "AAPL", Bid: 150.10, Ask: 150.12, Time: "2024-01-02T14:30:00.000000001Z"},
			{Type: "q", Symbol: "MSFT", Bid: 400.50, Ask: 400.55, Time: "2024-01-02T14:30:00.5Z"},
		}))

		// Keep the connection open until the client closes it.
		conn.ReadMessage()
	})

	s, err := DialStream(context.Background(), url, "key", "secret")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Subscribe([]string{"AAPL", "MSFT"}))

	q := <-s.Quotes()
	assert.Equal(t, "AAPL", q.Symbol)
	assert.InDelta(t, 150.10, q.Bid, 1e-9)
	assert.InDelta(t, 150.12, q.Ask, 1e-9)
	assert.Equal(t, 2024, q.Time.Year())

	q = <-s.Quotes()
	assert.Equal(t, "MSFT", q.Symbol)
}

func TestDialStream_AuthRejected(t *testing.T) {
	t.Parallel()

	url := wsServer(t, func(conn *websocket.Conn) {
		var auth map[string]string
		if err := conn.ReadJSON(&auth); err != nil {
			return
		}
		conn.WriteJSON([]streamMsg{{Type: "error", Message: "auth failed", Code: 402}})
	})

	_, err := DialStream(context.Background(), url, "bad", "creds")
	require.Error(t, err)
	assert.True(t, broker.IsCode(err, broker.CodeAuthFailure))
}

func TestStream_CloseEndsQuotes(t *testing.T) {
	t.Parallel()

	url := wsServer(t, func(conn *websocket.Conn) {
		var auth map[string]string
		if err := conn.ReadJSON(&auth); err != nil {
			return
		}
		conn.WriteJSON([]streamMsg{{Type: "success", Message: "authenticated"}})
		conn.ReadMessage()
	})

	s, err := DialStream(context.Background(), url, "key", "secret")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	select {
	case _, ok := <-s.Quotes():
		assert.False(t, ok, "quote channel closes with the stream")
	case <-time.After(2 * time.Second):
		t.Fatal("quote channel did not close")
	}
	assert.NoError(t, s.Err(), "deliberate close is not an error")
}
