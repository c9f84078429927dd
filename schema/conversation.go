package schema

import "strings"

// Role identifies the speaker of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single utterance in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Exchange is one complete user/assistant round. History truncation treats an
// exchange as an indivisible unit.
type Exchange struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// Render serializes the exchange as history lines.
func (e Exchange) Render() string {
	var b strings.Builder
	b.WriteString("User: ")
	b.WriteString(e.User)
	if e.Assistant != "" {
		b.WriteString("\nAssistant: ")
		b.WriteString(e.Assistant)
	}
	return b.String()
}

// RenderHistory serializes exchanges oldest-first as newline-separated lines.
func RenderHistory(history []Exchange) string {
	if len(history) == 0 {
		return ""
	}
	parts := make([]string, 0, len(history))
	for _, ex := range history {
		parts = append(parts, ex.Render())
	}
	return strings.Join(parts, "\n")
}
