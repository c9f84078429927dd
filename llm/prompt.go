package llm

import (
	"fmt"
	"strings"

	"github.com/docsage/ragpipe/schema"
)

const promptTemplate = `You are a helpful assistant. Answer the question using only the reference passages below. If the passages do not contain the answer, say so instead of guessing.

%s%s## Reference passages

%s

## Question

%s`

// BuildPrompt assembles the generation prompt from retrieved passages and
// prior conversation. Passages are numbered in the order given, which is the
// relevance order produced upstream.
func BuildPrompt(query string, contexts []string, history []schema.Exchange, langInstruction string) string {
	var passages strings.Builder
	for i, c := range contexts {
		if i > 0 {
			passages.WriteString("\n\n")
		}
		fmt.Fprintf(&passages, "[%d] %s", i+1, c)
	}

	historyBlock := ""
	if len(history) > 0 {
		historyBlock = "## Conversation so far\n\n" + schema.RenderHistory(history) + "\n\n"
	}

	instructionBlock := ""
	if langInstruction != "" {
		instructionBlock = langInstruction + "\n\n"
	}

	return fmt.Sprintf(promptTemplate, instructionBlock, historyBlock, passages.String(), query)
}
