package llm

import (
	"strings"
	"unicode"
)

type langMatcher struct {
	name     string
	keywords []string
}

// Keyword lists for Latin-script languages. Script detection handles the
// rest; English is the fallback and gets no instruction.
var latinMatchers = []langMatcher{
	{"Spanish", []string{"qué", "cómo", "cuál", "dónde", "por qué", "cuándo", "quién"}},
	{"French", []string{"quoi", "comment", "quel", "quelle", "pourquoi", "où est", "qu'est-ce"}},
	{"German", []string{"was ist", "wie ", "warum", "welche", "wofür", "können sie"}},
	{"Portuguese", []string{"o que", "como é", "qual", "por que", "onde está", "quem é"}},
}

// DetectLanguage inspects a query and returns an instruction telling the
// model which language to answer in, or "" when English (or no confident
// match) applies.
func DetectLanguage(query string) string {
	counts := map[string]int{}
	for _, r := range query {
		switch {
		case unicode.Is(unicode.Han, r):
			counts["Chinese"]++
		case unicode.Is(unicode.Hiragana, r), unicode.Is(unicode.Katakana, r):
			counts["Japanese"]++
		case unicode.Is(unicode.Hangul, r):
			counts["Korean"]++
		case unicode.Is(unicode.Cyrillic, r):
			counts["Russian"]++
		case unicode.Is(unicode.Arabic, r):
			counts["Arabic"]++
		}
	}
	// Japanese text mixes kana with Han characters; kana presence wins.
	if counts["Japanese"] > 0 {
		return answerIn("Japanese")
	}
	best, bestCount := "", 0
	for name, n := range counts {
		if n > bestCount {
			best, bestCount = name, n
		}
	}
	if bestCount >= 2 {
		return answerIn(best)
	}

	lower := strings.ToLower(query)
	for _, m := range latinMatchers {
		for _, kw := range m.keywords {
			if strings.Contains(lower, kw) {
				return answerIn(m.name)
			}
		}
	}
	return ""
}

func answerIn(language string) string {
	return "Answer in " + language + "."
}
