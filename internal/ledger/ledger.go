// Package ledger keeps the append-only, page-stamped record of every
// conversation turn in a tutoring session. It is the single source of truth
// the auditor consumes.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/edspace/lectern/internal/model"
)

// DefaultContextWindow is the number of recent turns included when building
// prompt context.
const DefaultContextWindow = 5

// Ledger is an append-only chronological record of conversation turns.
// Entries are never removed or reordered. A Ledger is owned by exactly one
// session and is not safe for concurrent use on its own.
type Ledger struct {
	entries []model.Entry
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Append records a turn, timestamped at call time. It fails only on an
// invalid role.
func (l *Ledger) Append(role model.Role, content string, page int, metadata map[string]any) error {
	if !role.Valid() {
		return fmt.Errorf("ledger: invalid role %q", role)
	}
	l.entries = append(l.entries, model.Entry{
		Role:      role,
		Content:   content,
		Page:      page,
		Timestamp: time.Now(),
		Metadata:  metadata,
	})
	return nil
}

// Len returns the number of recorded entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// FullHistory returns a copy of all entries in insertion order.
func (l *Ledger) FullHistory() []model.Entry {
	out := make([]model.Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// RecentContext formats the last window entries as a page-tagged transcript
// for prompt construction. A window <= 0 falls back to DefaultContextWindow.
func (l *Ledger) RecentContext(window int) string {
	if window <= 0 {
		window = DefaultContextWindow
	}
	entries := l.entries
	if len(entries) > window {
		entries = entries[len(entries)-window:]
	}

	var sb strings.Builder
	sb.WriteString("Conversation History:\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "Page %d - %s: %s\n", e.Page, e.Role, e.Content)
	}
	return strings.TrimSpace(sb.String())
}
