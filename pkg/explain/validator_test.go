package explain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var vatQuotes = []string{
	"Opća stopa PDV-a iznosi 25%",
	"Porezni obveznik mora obračunati PDV",
}

func TestValidate_TraceableExplanationPasses(t *testing.T) {
	v := Validate(
		"Opća stopa PDV-a iznosi 25%. Porezni obveznik mora obračunati PDV.",
		"The standard VAT rate is 25%.",
		vatQuotes, 25)
	assert.True(t, v.Valid, "errors: %v", v.Errors)
	assert.Empty(t, v.Errors)
}

func TestValidate_UntracedNumberFails(t *testing.T) {
	v := Validate(
		"Stopa PDV-a iznosi 13%.",
		"",
		vatQuotes, 13)
	assert.False(t, v.Valid)
	assert.NotEmpty(t, v.Errors)
}

func TestValidate_UntracedObligationFails(t *testing.T) {
	v := Validate(
		"Obveznik ne smije odbiti pretporez.",
		"",
		[]string{"Stopa iznosi 25%"}, nil)
	assert.False(t, v.Valid)
}

func TestValidate_ValueMustAppearInExplanation(t *testing.T) {
	v := Validate(
		"Opća stopa PDV-a je nepromijenjena.",
		"",
		vatQuotes, 25)
	assert.False(t, v.Valid)
}

func TestValidate_DecimalCommaMatchesDecimalPoint(t *testing.T) {
	v := Validate(
		"",
		"The reduced rate is 13.5%.",
		[]string{"Snižena stopa iznosi 13,5%"}, "13,5%")
	assert.True(t, v.Valid, "errors: %v", v.Errors)
}

func TestValidate_EmptyExplanationFails(t *testing.T) {
	v := Validate("", "  ", vatQuotes, 25)
	assert.False(t, v.Valid)
}

func TestValidate_NoQuotesFails(t *testing.T) {
	v := Validate("Stopa je 25%.", "", nil, 25)
	assert.False(t, v.Valid)
}

func TestQuoteOnly(t *testing.T) {
	hr, en := QuoteOnly(vatQuotes, 25)

	for _, q := range vatQuotes {
		assert.Contains(t, hr, q, "quote must survive verbatim")
		assert.Contains(t, en, q)
	}
	assert.Contains(t, hr, "25")
	assert.Contains(t, en, "Recorded value: 25.")
	assert.True(t, strings.HasPrefix(hr, "Izvor navodi:"))
	assert.True(t, strings.HasPrefix(en, "The source states:"))
}
