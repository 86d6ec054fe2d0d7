package dialogue

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultTypos maps common misspellings seen in chat to their canonical word.
func DefaultTypos() map[string]string {
	return map[string]string{
		"moee":       "more",
		"mroe":       "more",
		"portfolo":   "portfolio",
		"portfollio": "portfolio",
		"protfolio":  "portfolio",
		"portolio":   "portfolio",
		"holdigs":    "holdings",
		"holdngs":    "holdings",
		"stoks":      "stocks",
		"stcoks":     "stocks",
		"stcok":      "stock",
		"profitt":    "profit",
		"prfit":      "profit",
		"proft":      "profit",
		"los":        "loss",
		"perfomance": "performance",
		"performace": "performance",
		"invesment":  "investment",
		"investmnt":  "investment",
		"balence":    "balance",
		"blance":     "balance",
		"margn":      "margin",
		"shwo":       "show",
		"hw":         "how",
		"wat":        "what",
		"wht":        "what",
		"pls":        "please",
		"plz":        "please",
		"tdy":        "today",
		"todays":     "today's",
	}
}

type replacement struct {
	pattern   *regexp.Regexp
	canonical string
}

// Normalizer rewrites known misspellings. Only whole words are replaced, so
// a misspelling embedded in a longer word is left alone.
type Normalizer struct {
	replacements []replacement
}

func NewNormalizer(typos map[string]string) *Normalizer {
	words := make([]string, 0, len(typos))
	for word := range typos {
		if strings.TrimSpace(word) != "" {
			words = append(words, word)
		}
	}
	sort.Strings(words)

	n := &Normalizer{replacements: make([]replacement, 0, len(words))}
	for _, word := range words {
		n.replacements = append(n.replacements, replacement{
			pattern:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`),
			canonical: typos[word],
		})
	}
	return n
}

func (n *Normalizer) Normalize(text string) string {
	for _, r := range n.replacements {
		text = r.pattern.ReplaceAllLiteralString(text, r.canonical)
	}
	return text
}

// Message keeps the raw text next to its normalized form.
type Message struct {
	Raw        string
	Normalized string
}

func (n *Normalizer) Message(raw string) Message {
	return Message{Raw: raw, Normalized: n.Normalize(raw)}
}
