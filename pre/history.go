package pre

import (
	"github.com/docsage/ragpipe/schema"
)

// TokenCounter reports how many tokens a string encodes to.
type TokenCounter interface {
	Count(text string) int
}

// HistoryManager trims conversation history to a token budget.
type HistoryManager struct {
	counter TokenCounter
	budget  int
}

func NewHistoryManager(counter TokenCounter, budget int) *HistoryManager {
	return &HistoryManager{counter: counter, budget: budget}
}

// Truncate keeps whole exchanges, newest first, until the budget runs out,
// and returns them in chronological order. The newest exchange is never
// split: if even it alone exceeds the budget, nothing is kept rather than a
// half exchange losing its answer.
func (m *HistoryManager) Truncate(history []schema.Exchange) []schema.Exchange {
	if len(history) == 0 || m.budget <= 0 {
		return nil
	}

	remaining := m.budget
	kept := 0
	for i := len(history) - 1; i >= 0; i-- {
		cost := m.counter.Count(history[i].Render())
		if cost > remaining {
			break
		}
		remaining -= cost
		kept++
	}
	if kept == 0 {
		return nil
	}
	out := make([]schema.Exchange, kept)
	copy(out, history[len(history)-kept:])
	return out
}
