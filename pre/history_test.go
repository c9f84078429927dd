package pre

import (
	"strings"
	"testing"

	"github.com/docsage/ragpipe/schema"
)

// wordCounter counts whitespace-separated words, predictable for tests.
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

func exchange(user, assistant string) schema.Exchange {
	return schema.Exchange{User: user, Assistant: assistant}
}

func TestTruncateKeepsEverythingUnderBudget(t *testing.T) {
	m := NewHistoryManager(wordCounter{}, 100)
	history := []schema.Exchange{
		exchange("first question", "first answer"),
		exchange("second question", "second answer"),
	}
	got := m.Truncate(history)
	if len(got) != 2 {
		t.Fatalf("expected both exchanges kept, got %d", len(got))
	}
	if got[0].User != "first question" || got[1].User != "second question" {
		t.Fatal("expected chronological order preserved")
	}
}

func TestTruncateDropsOldestFirst(t *testing.T) {
	// Each exchange renders to 6 words: "User: a b Assistant: c d".
	m := NewHistoryManager(wordCounter{}, 13)
	history := []schema.Exchange{
		exchange("oldest q", "oldest a"),
		exchange("middle q", "middle a"),
		exchange("newest q", "newest a"),
	}
	got := m.Truncate(history)
	if len(got) != 2 {
		t.Fatalf("expected 2 exchanges within budget, got %d", len(got))
	}
	if got[0].User != "middle q" || got[1].User != "newest q" {
		t.Fatalf("expected the two newest exchanges, got %+v", got)
	}
}

func TestTruncateNeverSplitsAnExchange(t *testing.T) {
	m := NewHistoryManager(wordCounter{}, 3)
	history := []schema.Exchange{
		exchange("a question with several words", "an answer with several words"),
	}
	if got := m.Truncate(history); got != nil {
		t.Fatalf("expected nothing kept when the newest exchange exceeds the budget, got %d", len(got))
	}
}

func TestTruncateEmptyHistory(t *testing.T) {
	m := NewHistoryManager(wordCounter{}, 100)
	if got := m.Truncate(nil); got != nil {
		t.Fatal("expected nil for empty history")
	}
}

func TestTruncateZeroBudget(t *testing.T) {
	m := NewHistoryManager(wordCounter{}, 0)
	history := []schema.Exchange{exchange("q", "a")}
	if got := m.Truncate(history); got != nil {
		t.Fatal("expected nil with zero budget")
	}
}
