package textsplitter

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/docsage/ragpipe/config"
	"github.com/docsage/ragpipe/schema"
)

// boundaryWindow is how far back (in tokens) from the end of a slice the
// splitter looks for a natural boundary before giving up and cutting hard.
const boundaryWindow = 100

// boundaryGroups are probed in priority order; within a group the latest
// matching token wins.
var boundaryGroups = [][]string{
	{"\n\n"},
	{"\n"},
	{".", "!", "?", ";", ":"},
	{" "},
}

// TokenSplitter splits text into overlapping, token-bounded chunks.
// Splitting is deterministic: identical input and parameters always produce
// identical chunk boundaries.
type TokenSplitter struct {
	maxTokens     int
	overlapTokens int
	enc           *tiktoken.Tiktoken
}

// NewTokenSplitter creates a splitter from splitter configuration.
func NewTokenSplitter(cfg *config.SplitterConfig) (*TokenSplitter, error) {
	encoding := cfg.Encoding
	if encoding == "" {
		encoding = config.DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %q: %w", encoding, err)
	}
	maxTokens := cfg.ChunkSize
	if maxTokens <= 0 {
		maxTokens = config.DefaultChunkSize
	}
	overlap := cfg.ChunkOverlap
	if overlap < 0 {
		overlap = 0
	}
	return &TokenSplitter{maxTokens: maxTokens, overlapTokens: overlap, enc: enc}, nil
}

// Split chunks text into token-bounded pieces. Empty input yields nil.
func (s *TokenSplitter) Split(text string) []schema.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	ids := s.enc.Encode(text, nil, nil)

	var chunks []schema.Chunk
	i := 0
	for i < len(ids) {
		end := i + s.maxTokens
		if end >= len(ids) {
			end = len(ids)
		} else {
			end = s.boundary(ids, i, end)
		}

		chunks = append(chunks, schema.Chunk{
			Text:       s.enc.Decode(ids[i:end]),
			TokenCount: end - i,
			ChunkIndex: len(chunks),
		})

		if end == len(ids) {
			break
		}
		// Guaranteed forward progress even when overlap >= chunk length.
		next := end - s.overlapTokens
		if next <= i {
			next = i + 1
		}
		i = next
	}
	return chunks
}

// boundary backs the cut position off to the latest natural boundary within
// the trailing window, trying double newline first, then single newline,
// sentence punctuation, and finally plain space. Returns end unchanged when
// no boundary token is found.
func (s *TokenSplitter) boundary(ids []int, start, end int) int {
	low := end - boundaryWindow
	if low < start+1 {
		low = start + 1
	}
	for _, group := range boundaryGroups {
		for j := end - 1; j >= low; j-- {
			tok := s.enc.Decode(ids[j : j+1])
			for _, b := range group {
				if strings.Contains(tok, b) {
					return j + 1
				}
			}
		}
	}
	return end
}

// CountTokens returns the token count of text under the splitter's encoding.
func (s *TokenSplitter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(s.enc.Encode(text, nil, nil))
}
