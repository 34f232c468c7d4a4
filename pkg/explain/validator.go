// Package explain validates generated rule explanations against the
// verbatim source quotes backing them. Explanation failures are soft:
// the composer substitutes a quote-only explanation instead of
// rejecting the rule, because a bad narrative is replaceable while the
// underlying fact is not.
package explain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/lexhr/curator/pkg/quotes"
)

// Verdict is the result of validating one explanation pair.
type Verdict struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

var (
	numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?\s?%?`)
	yearPattern   = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)

	// Modal verbs expressing obligation. An explanation asserting an
	// obligation the quotes never state is treating AI prose as law.
	modalsHr = []string{"mora", "moraju", "dužan", "dužni", "obvezan", "obvezni", "ne smije", "ne smiju"}
	modalsEn = []string{"must", "shall", "may not", "required", "obliged"}
)

// Validate checks that the numbers, years and modal obligations in the
// explanations trace back to the supplied quotes, and that the stated
// value appears in the explanation text.
func Validate(explanationHr, explanationEn string, sourceQuotes []string, value any) Verdict {
	v := Verdict{Valid: true}

	if strings.TrimSpace(explanationHr) == "" && strings.TrimSpace(explanationEn) == "" {
		v.fail("explanation is empty")
		return v
	}
	if len(sourceQuotes) == 0 {
		v.fail("no source quotes to validate against")
		return v
	}

	corpus := normalizeText(strings.Join(sourceQuotes, " "))
	combined := normalizeText(explanationHr + " " + explanationEn)

	for _, num := range dedupe(numberPattern.FindAllString(combined, -1)) {
		if !containsNumber(corpus, num) {
			v.fail(fmt.Sprintf("number %q is not present in any source quote", strings.TrimSpace(num)))
		}
	}
	for _, year := range dedupe(yearPattern.FindAllString(combined, -1)) {
		if !strings.Contains(corpus, year) {
			v.fail(fmt.Sprintf("year %q is not present in any source quote", year))
		}
	}

	if modal := firstModal(normalizeText(explanationHr), modalsHr); modal != "" {
		if firstModal(corpus, modalsHr) == "" {
			v.fail(fmt.Sprintf("obligation %q is not stated by any source quote", modal))
		}
	}
	if modal := firstModal(normalizeText(explanationEn), modalsEn); modal != "" {
		// English quotes are rare for Croatian sources; a missing
		// English modal in a Croatian corpus is only a warning.
		if firstModal(corpus, modalsEn) == "" && firstModal(corpus, modalsHr) == "" {
			v.warn(fmt.Sprintf("obligation %q has no counterpart in the source quotes", modal))
		}
	}

	if rendered := renderValue(value); rendered != "" && !containsNumber(combined, rendered) && !strings.Contains(combined, strings.ToLower(rendered)) {
		v.fail(fmt.Sprintf("stated value %q does not appear in the explanation", rendered))
	}

	return v
}

// QuoteOnly builds the fallback explanation pair from verbatim quotes
// and the recorded value only. No generated prose survives into it.
func QuoteOnly(sourceQuotes []string, value any) (hr, en string) {
	quoted := make([]string, 0, len(sourceQuotes))
	for _, q := range sourceQuotes {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		quoted = append(quoted, fmt.Sprintf("„%s“", q))
	}
	joined := strings.Join(quoted, " ")
	rendered := renderValue(value)

	hr = fmt.Sprintf("Izvor navodi: %s", joined)
	en = fmt.Sprintf("The source states: %s", joined)
	if rendered != "" {
		hr += fmt.Sprintf(" Utvrđena vrijednost: %s.", rendered)
		en += fmt.Sprintf(" Recorded value: %s.", rendered)
	}
	return hr, en
}

func (v *Verdict) fail(msg string) {
	v.Valid = false
	v.Errors = append(v.Errors, msg)
}

func (v *Verdict) warn(msg string) {
	v.Warnings = append(v.Warnings, msg)
}

func normalizeText(s string) string {
	return strings.ToLower(quotes.Normalize(s))
}

// containsNumber compares numbers with the decimal comma and point
// forms treated as equal, so "25,5%" in a Croatian quote matches
// "25.5%" in an English explanation.
func containsNumber(corpus, num string) bool {
	n := strings.ReplaceAll(strings.TrimSpace(num), " ", "")
	alt := strings.ReplaceAll(n, ".", ",")
	if alt == n {
		alt = strings.ReplaceAll(n, ",", ".")
	}
	squashed := strings.ReplaceAll(corpus, " ", "")
	return strings.Contains(squashed, n) || strings.Contains(squashed, alt)
}

func firstModal(text string, modals []string) string {
	for _, m := range modals {
		if strings.Contains(text, m) {
			return m
		}
	}
	return ""
}

func renderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64, float32, int, int64, int32, bool, json.Number:
		return fmt.Sprintf("%v", v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		key := strings.TrimSpace(it)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}
