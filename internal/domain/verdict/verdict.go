// Package verdict extracts a normalized relevance score from free-form backend text.
package verdict

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/llmrank/internal/domain"
)

const number = `[-+]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][-+]?\d+)?`

// tokenRegex matches the first numeric token with an optional scale suffix:
// 1: value, 2: percent sign, 3: slash denominator, 4: "out of" denominator.
var tokenRegex = regexp.MustCompile(
	`(?i)(` + number + `)` +
		`(?:\s*(%)|\s*/\s*(` + number + `)|\s+out\s+of\s+(` + number + `))?`,
)

// thinkRegex strips hidden reasoning emitted by reasoning models. An unclosed
// block swallows the rest of the text.
var thinkRegex = regexp.MustCompile(`(?is)<think>.*?(?:</think>|\z)`)

const snippetRunes = 64

// Parse extracts the first numeric judgment from raw and clamps it to [0,1].
// Percentages and N/D or "N out of D" fractions are renormalized.
// It returns an error wrapping domain.ErrParseFailure when no number is found.
func Parse(raw string) (domain.Score, error) {
	text := thinkRegex.ReplaceAllString(raw, " ")

	m := tokenRegex.FindStringSubmatchIndex(text)
	if m == nil {
		return domain.FallbackScore, fmt.Errorf("%w: %q", domain.ErrParseFailure, snippet(raw))
	}

	value := text[m[2]:m[3]]
	if (value[0] == '-' || value[0] == '+') && m[2] > 0 {
		// "top-3" is a word, not a signed number.
		prev, _ := utf8.DecodeLastRuneInString(text[:m[2]])
		if unicode.IsLetter(prev) || unicode.IsDigit(prev) {
			value = value[1:]
		}
	}

	v, err := parseFloat(value)
	if err != nil {
		return domain.FallbackScore, fmt.Errorf("%w: %q", domain.ErrParseFailure, snippet(raw))
	}

	switch {
	case m[4] >= 0:
		v /= 100
	case m[6] >= 0:
		v = divide(v, text[m[6]:m[7]])
	case m[8] >= 0:
		v = divide(v, text[m[8]:m[9]])
	}

	return domain.Clamp(v), nil
}

// parseFloat accepts out-of-range literals as ±Inf; Clamp bounds them.
func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, err //nolint:wrapcheck // mapped to ErrParseFailure by the caller
	}
	return v, nil
}

// divide renormalizes v by a denominator; a zero or unparsable denominator leaves v as is.
func divide(v float64, denom string) float64 {
	d, err := parseFloat(denom)
	if err != nil || d <= 0 {
		return v
	}
	return v / d
}

func snippet(s string) string {
	if utf8.RuneCountInString(s) <= snippetRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == snippetRunes {
			return s[:i] + "…"
		}
		n++
	}
	return s
}
