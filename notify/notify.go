// Package notify carries domain events (fills, risk breaches, run
// summaries) to an external delivery collaborator. Email/Telegram transports
// live outside this repo; they only need to implement Notifier.
package notify

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

type Kind string

const (
	KindFill        Kind = "fill"
	KindRiskBreach  Kind = "risk_breach"
	KindRunComplete Kind = "run_complete"
)

// Event is a plain payload: one line of text plus structured fields.
type Event struct {
	Kind   Kind
	Time   time.Time
	Symbol string
	Text   string
	Fields map[string]string
}

// Render flattens the event into a single log-friendly line.
func (e Event) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", e.Kind)
	if e.Symbol != "" {
		fmt.Fprintf(&b, " %s", e.Symbol)
	}
	if e.Text != "" {
		fmt.Fprintf(&b, " %s", e.Text)
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, e.Fields[k])
	}
	return b.String()
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier writes events to a standard logger. It is the default sink
// when no external transport is configured.
type LogNotifier struct {
	Logger *log.Logger
}

func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	logger := n.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Println(ev.Render())
	return nil
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Multi fans one event out to several notifiers, returning the first error
// after all have been attempted.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
