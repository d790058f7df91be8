package transform

import (
	"regexp"
	"strings"
)

// Boilerplate the card networks and aggregators prepend or append to
// descriptions. Matched case-insensitively at the string edges only.
var boilerplatePrefixes = []string{
	"DEBIT CARD PURCHASE",
	"CREDIT CARD PURCHASE",
	"POS PURCHASE",
	"POS DEBIT",
	"ACH DEBIT",
	"ACH CREDIT",
	"ELECTRONIC WITHDRAWAL",
	"CHECKCARD",
	"VISA PURCHASE",
	"RECURRING PAYMENT",
	"WEB PMT",
}

var boilerplateSuffixes = []string{
	"PENDING",
	"POSTED",
	"CARD PRESENT",
	"CARD NOT PRESENT",
}

var (
	// Embedded reference numbers: long digit runs, #1234 style store codes,
	// and REF/TRACE tokens.
	refNumberRe = regexp.MustCompile(`(?i)\b(?:REF|TRACE|AUTH)[#: ]*[A-Z0-9]{4,}\b|#\d{3,}\b|\b\d{6,}\b`)
	multiSpace  = regexp.MustCompile(`\s{2,}`)
)

// CleanDescription strips known boilerplate, embedded reference numbers, and
// collapses whitespace. Returns the input unchanged (trimmed) when nothing
// recognizable is found.
func CleanDescription(s string) string {
	out := strings.TrimSpace(s)

	upper := strings.ToUpper(out)
	for _, p := range boilerplatePrefixes {
		if strings.HasPrefix(upper, p) {
			out = strings.TrimSpace(out[len(p):])
			out = strings.TrimLeft(out, "-: ")
			upper = strings.ToUpper(out)
			break
		}
	}
	for _, suf := range boilerplateSuffixes {
		if strings.HasSuffix(upper, suf) {
			out = strings.TrimSpace(out[:len(out)-len(suf)])
			out = strings.TrimRight(out, "-: ")
			upper = strings.ToUpper(out)
		}
	}

	out = refNumberRe.ReplaceAllString(out, "")
	out = multiSpace.ReplaceAllString(strings.TrimSpace(out), " ")
	return out
}
