// Package notify delivers alert digests to chat platforms (Slack, Discord).
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zulandar/timekeeper/internal/alert"
)

// Sidebar colors by alert severity.
const (
	ColorCritical = "#e53935"
	ColorModerate = "#ff9800"
	ColorMinor    = "#2196f3"
	ColorClear    = "#36a64f"
)

// Notifier is implemented by each chat platform.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, msg Message) error
}

// Message is a platform-neutral digest.
type Message struct {
	Text  string
	Items []Item
}

// Item is one attachment/embed in a digest, typically one worker.
type Item struct {
	Title  string
	Body   string
	Color  string
	Fields []Field
}

// Field is a key-value pair rendered inside an item.
type Field struct {
	Name  string
	Value string
	Short bool
}

// SeverityColor maps an alert severity to a sidebar color.
func SeverityColor(severity string) string {
	switch severity {
	case alert.SeverityCritical:
		return ColorCritical
	case alert.SeverityModerate:
		return ColorModerate
	case alert.SeverityMinor:
		return ColorMinor
	default:
		return ColorClear
	}
}

var severityRank = map[string]int{
	alert.SeverityCritical: 3,
	alert.SeverityModerate: 2,
	alert.SeverityMinor:    1,
}

// FormatDigest groups alerts by worker into one item each. An empty list
// yields a short all-clear message.
func FormatDigest(title string, alerts []alert.Alert) Message {
	if len(alerts) == 0 {
		return Message{Text: title + ": no new alerts"}
	}

	type group struct {
		name, department string
		worst            string
		counts           map[string]int
		lines            []string
	}
	groups := make(map[string]*group)
	var order []string
	for _, a := range alerts {
		g, ok := groups[a.WorkerID]
		if !ok {
			g = &group{name: a.WorkerName, department: a.Department, counts: make(map[string]int)}
			groups[a.WorkerID] = g
			order = append(order, a.WorkerID)
		}
		g.counts[a.Severity]++
		if severityRank[a.Severity] > severityRank[g.worst] {
			g.worst = a.Severity
		}
		line := fmt.Sprintf("%s %s: logged %s of %s", a.Date, a.Severity, a.LoggedHours, a.TargetHours)
		if a.Justification != "" {
			line += " (justification " + a.Justification + ")"
		}
		g.lines = append(g.lines, line)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return groups[order[i]].name < groups[order[j]].name
	})

	msg := Message{Text: fmt.Sprintf("%s: %d alert(s) across %d worker(s)", title, len(alerts), len(order))}
	for _, id := range order {
		g := groups[id]
		item := Item{
			Title: fmt.Sprintf("%s (%s)", g.name, g.department),
			Body:  strings.Join(g.lines, "\n"),
			Color: SeverityColor(g.worst),
		}
		for _, sev := range []string{alert.SeverityCritical, alert.SeverityModerate, alert.SeverityMinor} {
			if n := g.counts[sev]; n > 0 {
				item.Fields = append(item.Fields, Field{Name: sev, Value: fmt.Sprint(n), Short: true})
			}
		}
		msg.Items = append(msg.Items, item)
	}
	return msg
}

// Multi fans a message out to several notifiers. Every notifier is tried;
// failures are joined.
type Multi []Notifier

// Name lists the wrapped notifier names.
func (m Multi) Name() string {
	names := make([]string, len(m))
	for i, n := range m {
		names[i] = n.Name()
	}
	return strings.Join(names, ",")
}

// Notify sends msg through every notifier.
func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Chunk splits items into batches of at most size.
func Chunk(items []Item, size int) [][]Item {
	if size <= 0 || len(items) <= size {
		return [][]Item{items}
	}
	var out [][]Item
	for len(items) > 0 {
		n := size
		if len(items) < n {
			n = len(items)
		}
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}
