// Package quotes folds Unicode quotation-mark variants to their ASCII
// counterparts so extracted quotes stay comparable to differently-encoded
// source bytes.
package quotes

import (
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// asciiFold maps each quotation rune to ASCII '"' or '\”. The mapping is
// one-to-one per rune, so normalization preserves character length.
var asciiFold = map[rune]rune{
	// Single quotes / apostrophes.
	'‘': '\'', // left single quotation mark
	'’': '\'', // right single quotation mark
	'‚': '\'', // single low-9 quotation mark
	'‛': '\'', // single high-reversed-9 quotation mark
	'‹': '\'', // single left-pointing angle quotation mark
	'›': '\'', // single right-pointing angle quotation mark
	'′': '\'', // prime
	'`': '\'', // grave accent
	'´': '\'', // acute accent
	'ʼ': '\'', // modifier letter apostrophe
	'＇': '\'', // fullwidth apostrophe

	// Double quotes.
	'“': '"', // left double quotation mark
	'”': '"', // right double quotation mark
	'„': '"', // double low-9 quotation mark
	'‟': '"', // double high-reversed-9 quotation mark
	'«': '"', // left guillemet
	'»': '"', // right guillemet
	'″': '"', // double prime
	'‴': '"', // triple prime
	'〝': '"', // reversed double prime quotation mark
	'〞': '"', // double prime quotation mark
	'「': '"', // left corner bracket
	'」': '"', // right corner bracket
	'『': '"', // left white corner bracket
	'』': '"', // right white corner bracket
	'＂': '"', // fullwidth quotation mark
}

func fold(r rune) rune {
	if ascii, ok := asciiFold[r]; ok {
		return ascii
	}
	return r
}

// Transformer returns a streaming transformer applying the quote fold.
// Useful when normalizing large evidence bodies without materializing
// an intermediate string.
func Transformer() transform.Transformer {
	return runes.Map(fold)
}

// Normalize maps every Unicode quotation-mark, apostrophe, prime and
// guillemet variant in s to ASCII '"' or '\”. Pure and idempotent.
func Normalize(s string) string {
	out, _, err := transform.String(Transformer(), s)
	if err != nil {
		// runes.Map never fails on valid UTF-8; keep the input on the
		// (unreachable) error path rather than dropping data.
		return s
	}
	return out
}
