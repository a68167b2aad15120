package engine

import "strings"

// tokenize splits content into lowercase words for the keyword histogram
// summarize_session derives from FTS tokens. It mirrors FTS5's default
// unicode61 tokenizer closely enough for a summary statistic: lowercase,
// split on anything that isn't an ASCII letter or digit (non-ASCII letters
// are separators too), drop short noise words.
func tokenize(content string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		if b.Len() >= minKeywordLen {
			out = append(out, b.String())
		}
		b.Reset()
	}
	for _, r := range strings.ToLower(content) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return out
}

const minKeywordLen = 3
