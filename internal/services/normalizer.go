package services

import "strings"

// Normalize derives the cache key for a question: every byte that is not an
// ASCII letter is dropped and the rest is lowercased. A non-empty tag is
// folded in as "tag:text" before stripping. Normalize is idempotent.
func Normalize(text, tag string) string {
	if tag != "" {
		text = tag + ":" + text
	}
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c >= 'a' && c <= 'z':
			b.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
		}
	}
	return b.String()
}
