package pre

import (
	"strings"

	"github.com/docsage/ragpipe/config"
)

// Classification captures what kind of query this is. The flags are not
// mutually exclusive: a follow-up can also be complex.
type Classification struct {
	IsFollowUp      bool
	IsClarification bool
	IsComplex       bool
}

var clarificationMarkers = []string{
	"what do you mean",
	"what does that mean",
	"can you clarify",
	"can you explain that",
	"summarize",
	"in a table",
	"as a table",
	"in bullet points",
	"rephrase",
	"say that again",
}

var followUpPrefixes = []string{
	"and ", "so ", "but ", "also ", "then ", "what about ", "how about ",
}

var followUpPronouns = []string{
	" it ", " its ", " that ", " this ", " those ", " these ", " they ", " them ",
}

var complexMarkers = []string{
	"compare", "contrast", "difference between", "pros and cons",
	"step by step", "versus", " vs ", " vs.",
}

// Classify inspects a query with simple lexical rules. The rules lean
// conservative: an unrecognized query is treated as a fresh standalone
// question and gets full retrieval depth.
func Classify(query string, hasHistory bool) Classification {
	lower := strings.ToLower(strings.TrimSpace(query))
	padded := " " + lower + " "

	var c Classification
	for _, m := range clarificationMarkers {
		if strings.Contains(lower, m) {
			c.IsClarification = true
			break
		}
	}
	for _, p := range followUpPrefixes {
		if strings.HasPrefix(lower, p) {
			c.IsFollowUp = true
			break
		}
	}
	if !c.IsFollowUp && hasHistory {
		for _, p := range followUpPronouns {
			if strings.Contains(padded, p) {
				c.IsFollowUp = true
				break
			}
		}
	}
	for _, m := range complexMarkers {
		if strings.Contains(padded, m) {
			c.IsComplex = true
			break
		}
	}
	if strings.Count(lower, "?") > 1 {
		c.IsComplex = true
	}
	return c
}

// RetrievalDepth maps a classification to how many passages retrieval should
// return. Clarifications mostly rework the previous answer, follow-ups reuse
// much of the prior context; both need less fresh material.
func (c Classification) RetrievalDepth(requested int) int {
	if requested <= 0 {
		requested = config.DefaultTopK
	}
	switch {
	case c.IsClarification:
		return min(2, requested)
	case c.IsFollowUp:
		return min(3, requested)
	default:
		return requested
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
