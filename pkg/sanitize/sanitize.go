// Package sanitize redacts common PII patterns from user input before it
// enters conversation history or session records. Redaction is total and
// side-effect-free, which is what the engine requires of its sanitizer.
package sanitize

import "regexp"

// Replacement placeholders keep the redacted category visible so the
// model can still respond sensibly ("your email" instead of gibberish).
var patterns = []struct {
	re          *regexp.Regexp
	placeholder string
}{
	{regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "[EMAIL]"},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN]"},
	{regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`), "[CARD]"},
	{regexp.MustCompile(`\+?\d{1,3}[ .-]?\(?\d{2,4}\)?[ .-]?\d{3,4}[ .-]?\d{3,4}\b`), "[PHONE]"},
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), "[IP]"},
}

// Redact replaces emails, SSNs, card numbers, phone numbers, and IPv4
// addresses with category placeholders. Order matters: longer, more
// specific patterns run before the greedier phone pattern.
func Redact(text string) string {
	for _, p := range patterns {
		text = p.re.ReplaceAllString(text, p.placeholder)
	}
	return text
}
