package textsplitter

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts model tokens for budget accounting (history truncation,
// prompt estimation). It shares the splitter's encoding configuration.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter creates a token counter for the given encoding name.
func NewCounter(encoding string) (*Counter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %q: %w", encoding, err)
	}
	return &Counter{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}
