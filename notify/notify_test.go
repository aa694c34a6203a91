package notify

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRender(t *testing.T) {
	t.Parallel()

	ev := Event{
		Kind:   KindFill,
		Time:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Symbol: "AAPL",
		Text:   "opened long 400 @ 100.00",
		Fields: map[string]string{"take": "110.00", "stop": "95.00"},
	}

	// Fields render in sorted key order so output is stable.
	assert.Equal(t, "[fill] AAPL opened long 400 @ 100.00 stop=95.00 take=110.00", ev.Render())

	bare := Event{Kind: KindRunComplete}
	assert.Equal(t, "[run_complete]", bare.Render())
}

func TestLogNotifier(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n := &LogNotifier{Logger: log.New(&buf, "", 0)}

	err := n.Notify(context.Background(), Event{Kind: KindRiskBreach, Symbol: "MSFT", Text: "daily loss limit hit"})
	require.NoError(t, err)
	assert.Equal(t, "[risk_breach] MSFT daily loss limit hit\n", buf.String())
}

type recorder struct {
	events []Event
	err    error
}

func (r *recorder) Notify(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestMultiFanOut(t *testing.T) {
	t.Parallel()

	a := &recorder{}
	b := &recorder{err: errors.New("telegram down")}
	c := &recorder{}

	m := Multi{a, b, c}
	err := m.Notify(context.Background(), Event{Kind: KindFill, Symbol: "AAPL"})

	// Every sink sees the event even when one fails; the first error wins.
	assert.EqualError(t, err, "telegram down")
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
	assert.Len(t, c.events, 1)
}

func TestNop(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Nop{}.Notify(context.Background(), Event{Kind: KindFill}))
}
