// Package policy holds content rules applied before text leaves the service.
package policy

import "regexp"

type redactionRule struct {
	kind    string
	pattern *regexp.Regexp
	marker  string
}

// Rules run in order; cards precede phones so long digit runs are not
// reported as phone numbers.
var rules = []redactionRule{
	{kind: "api_key", pattern: regexp.MustCompile(`\b(?:sk|pk|AIza)[-_A-Za-z0-9]{16,}\b`), marker: "[REDACTED_KEY]"},
	{kind: "email", pattern: regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), marker: "[REDACTED_EMAIL]"},
	{kind: "card", pattern: regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`), marker: "[REDACTED_CARD]"},
	{kind: "phone", pattern: regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`), marker: "[REDACTED_PHONE]"},
}

// Redaction reports how many matches of each kind were masked.
type Redaction struct {
	Text   string
	Counts map[string]int
}

func (r Redaction) Changed() bool { return len(r.Counts) > 0 }

// Redact masks credentials and common PII in text.
func Redact(text string) Redaction {
	out := Redaction{Text: text}
	for _, rule := range rules {
		n := len(rule.pattern.FindAllStringIndex(out.Text, -1))
		if n == 0 {
			continue
		}
		if out.Counts == nil {
			out.Counts = make(map[string]int)
		}
		out.Counts[rule.kind] += n
		out.Text = rule.pattern.ReplaceAllString(out.Text, rule.marker)
	}
	return out
}

// RedactPII returns the masked text and whether anything changed.
func RedactPII(input string) (redacted string, changed bool) {
	r := Redact(input)
	return r.Text, r.Changed()
}
