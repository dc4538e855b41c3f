package invoke

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(authorization["']?\s*[:=]\s*["']?)(bearer\s+)?[^\s"',}]+`),
	regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]+`),
	regexp.MustCompile(`(?i)((?:api[_-]?key|access[_-]?token|token)["']?\s*[:=]\s*["']?)[^\s"'&,}]+`),
	regexp.MustCompile(`()sk-[A-Za-z0-9_-]{8,}`),
}

// redactor strips configured secrets and credential-looking substrings from text.
type redactor struct {
	secrets *strings.Replacer
}

func newRedactor(secrets []string) redactor {
	var pairs []string
	for _, s := range secrets {
		if len(s) >= 4 {
			pairs = append(pairs, s, redacted)
		}
	}
	if len(pairs) == 0 {
		return redactor{}
	}
	return redactor{secrets: strings.NewReplacer(pairs...)}
}

func (r redactor) redact(s string) string {
	if r.secrets != nil {
		s = r.secrets.Replace(s)
	}
	for _, p := range credentialPatterns {
		s = p.ReplaceAllString(s, "${1}"+redacted)
	}
	return s
}
