// Package notify announces decision events in the terminal.
package notify

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"upbit-trader/internal/models"
	"upbit-trader/internal/stream"
)

// Level filters which events are announced.
type Level string

const (
	// LevelAll announces every decision, including holds.
	LevelAll Level = "all"
	// LevelActionsOnly announces only BUY and SELL decisions.
	LevelActionsOnly Level = "actions_only"
	// LevelChangesOnly announces only decisions whose action differs
	// from the previous one for the same market.
	LevelChangesOnly Level = "changes_only"
)

// Notifier consumes decision events.
type Notifier interface {
	Notify(event stream.Event)
}

// TerminalNotifier writes one-line decision announcements to a writer,
// optionally ringing the terminal bell on actionable decisions.
type TerminalNotifier struct {
	out          io.Writer
	level        Level
	bellEnabled  bool
	colorEnabled bool

	mu         sync.Mutex
	lastAction map[string]models.Action
}

// Option configures a TerminalNotifier.
type Option func(*TerminalNotifier)

// WithLevel sets the announcement filter.
func WithLevel(level Level) Option {
	return func(n *TerminalNotifier) { n.level = level }
}

// WithBell rings the terminal bell on BUY and SELL announcements.
func WithBell(enabled bool) Option {
	return func(n *TerminalNotifier) { n.bellEnabled = enabled }
}

// WithColor toggles ANSI colors.
func WithColor(enabled bool) Option {
	return func(n *TerminalNotifier) { n.colorEnabled = enabled }
}

// NewTerminalNotifier creates a notifier writing to out.
func NewTerminalNotifier(out io.Writer, opts ...Option) *TerminalNotifier {
	n := &TerminalNotifier{
		out:          out,
		level:        LevelAll,
		colorEnabled: true,
		lastAction:   make(map[string]models.Action),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify announces one decision event, subject to the level filter.
func (n *TerminalNotifier) Notify(event stream.Event) {
	d := event.Decision

	n.mu.Lock()
	prev, seen := n.lastAction[event.Market]
	n.lastAction[event.Market] = d.Action
	n.mu.Unlock()

	switch n.level {
	case LevelActionsOnly:
		if d.Action == models.ActionHold {
			return
		}
	case LevelChangesOnly:
		if seen && prev == d.Action {
			return
		}
	}

	at := event.At
	if at.IsZero() {
		at = time.Now()
	}

	line := fmt.Sprintf("%s  %-10s %s  (confidence %.0f%%%s)",
		at.Format("15:04:05"), event.Market, n.paint(d.Action), d.Confidence*100, topReason(d))
	if n.bellEnabled && d.Action != models.ActionHold {
		line += "\a"
	}
	fmt.Fprintln(n.out, line)
}

func (n *TerminalNotifier) paint(action models.Action) string {
	if !n.colorEnabled {
		return string(action)
	}
	switch action {
	case models.ActionBuy:
		return "\033[32m" + string(action) + "\033[0m"
	case models.ActionSell:
		return "\033[31m" + string(action) + "\033[0m"
	default:
		return "\033[33m" + string(action) + "\033[0m"
	}
}

func topReason(d models.Decision) string {
	if len(d.Reasons) == 0 {
		return ""
	}
	r := d.Reasons[0]
	return fmt.Sprintf(", %s %+.2f", strings.ToLower(r.Indicator), r.Contribution)
}
