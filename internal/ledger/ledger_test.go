package ledger

import (
	"strings"
	"testing"

	"github.com/edspace/lectern/internal/model"
)

func TestAppendOnly(t *testing.T) {
	l := New()

	if err := l.Append(model.RoleSystem, "session started", 1, nil); err != nil {
		t.Fatalf("append system: %v", err)
	}
	if err := l.Append(model.RoleProfessor, "explanation", 1, map[string]any{"kind": "slide_explanation"}); err != nil {
		t.Fatalf("append professor: %v", err)
	}
	if err := l.Append(model.RoleStudent, "a question", 1, nil); err != nil {
		t.Fatalf("append student: %v", err)
	}

	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", l.Len())
	}

	before := l.FullHistory()
	if err := l.Append(model.RoleProfessor, "feedback", 2, nil); err != nil {
		t.Fatalf("append feedback: %v", err)
	}
	after := l.FullHistory()

	if len(after) != 4 {
		t.Fatalf("len(after) = %d, want 4", len(after))
	}
	for i := range before {
		if before[i].Content != after[i].Content || before[i].Role != after[i].Role {
			t.Errorf("entry %d changed after later append", i)
		}
	}

	// Mutating the returned view must not affect the ledger.
	after[0].Content = "tampered"
	if l.FullHistory()[0].Content != "session started" {
		t.Error("FullHistory() exposed internal state")
	}
}

func TestAppendInvalidRole(t *testing.T) {
	l := New()
	if err := l.Append(model.Role("moderator"), "hi", 1, nil); err == nil {
		t.Fatal("expected error for invalid role")
	}
	if l.Len() != 0 {
		t.Fatalf("Len() = %d after failed append, want 0", l.Len())
	}
}

func TestRecentContext(t *testing.T) {
	l := New()
	contents := []string{"one", "two", "three", "four", "five", "six", "seven"}
	for i, c := range contents {
		if err := l.Append(model.RoleStudent, c, i+1, nil); err != nil {
			t.Fatalf("append %q: %v", c, err)
		}
	}

	ctx := l.RecentContext(5)
	if !strings.HasPrefix(ctx, "Conversation History:") {
		t.Errorf("context missing header: %q", ctx)
	}
	if strings.Contains(ctx, "one") || strings.Contains(ctx, "two") {
		t.Errorf("context includes entries outside the window: %q", ctx)
	}
	for _, want := range []string{"three", "four", "five", "six", "seven"} {
		if !strings.Contains(ctx, want) {
			t.Errorf("context missing %q: %q", want, ctx)
		}
	}
	if !strings.Contains(ctx, "Page 7 - student: seven") {
		t.Errorf("context not page-tagged: %q", ctx)
	}
}

func TestRecentContextDefaultWindow(t *testing.T) {
	l := New()
	for i := 0; i < 10; i++ {
		if err := l.Append(model.RoleStudent, "turn", i+1, nil); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	ctx := l.RecentContext(0)
	lines := strings.Split(ctx, "\n")
	// Header plus DefaultContextWindow entries.
	if len(lines) != DefaultContextWindow+1 {
		t.Fatalf("got %d lines, want %d", len(lines), DefaultContextWindow+1)
	}
}
