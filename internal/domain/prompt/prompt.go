// Package prompt builds the fixed relevance-judgment prompt sent to the backend.
package prompt

import (
	"fmt"
	"unicode/utf8"
)

// Default length caps, in runes.
const (
	MaxQueryRunes    = 1024
	MaxDocumentRunes = 6000
)

// TruncationMarker is appended to any field cut at its cap.
const TruncationMarker = " [truncated]"

// Template is the instruction layout. The first verb is the query, the second the document.
const Template = `You are a relevance judge for a search engine.
Rate how relevant the document is to the query.

Query:
%s

Document:
%s

Respond with a single decimal number between 0 and 1, where 0 means not relevant
and 1 means perfectly relevant. Output only the number.
Relevance:`

// Builder renders prompts under configurable caps. The zero value uses the defaults.
type Builder struct {
	MaxQueryRunes    int
	MaxDocumentRunes int
}

// Build renders the prompt for query and document. It never fails.
func (b Builder) Build(query, document string) string {
	qCap := b.MaxQueryRunes
	if qCap <= 0 {
		qCap = MaxQueryRunes
	}
	dCap := b.MaxDocumentRunes
	if dCap <= 0 {
		dCap = MaxDocumentRunes
	}
	return fmt.Sprintf(Template, truncate(query, qCap), truncate(document, dCap))
}

// truncate cuts s to at most n runes on a rune boundary.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + TruncationMarker
		}
		count++
	}
	return s
}
