// Package amount converts free-form recognized text into a canonical
// monetary amount string: plain digits with at most two decimal places,
// no symbols or thousands separators.
package amount

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

var (
	// Currency-marked amounts are a higher-confidence signal and are tried first.
	currencyPattern = regexp.MustCompile(`[¥$￥]\s*([\d,]+\.?\d*)`)

	// Bare numeric token anywhere in the text.
	numberPattern = regexp.MustCompile(`[\d,]+\.?\d+|\d+`)

	// Canonical form: digits with an optional 1-2 digit fractional part.
	// The two-digit cap matches currency minor-unit conventions and rejects
	// malformed OCR artifacts such as stray extra digits.
	canonicalPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
)

// Extract finds a monetary amount in OCR text and returns its canonical form.
// ok is false when no amount is present or the captured value fails
// validation. A currency-prefixed capture that fails validation is reported
// as not found rather than retried against the bare-number pattern.
func Extract(text string) (string, bool) {
	if text == "" {
		return "", false
	}

	// Fold fullwidth digits and punctuation to their ASCII forms; receipts
	// photographed in CJK locales frequently recognize as fullwidth.
	text = width.Narrow.String(text)

	// Spaces and line breaks between digit groups are OCR noise.
	replacer := strings.NewReplacer(" ", "", "\n", "", "\r", "")
	text = replacer.Replace(text)

	var captured string
	if m := currencyPattern.FindStringSubmatch(text); m != nil {
		captured = m[1]
	} else if m := numberPattern.FindString(text); m != "" {
		captured = m
	} else {
		return "", false
	}

	captured = strings.ReplaceAll(captured, ",", "")

	if !canonicalPattern.MatchString(captured) {
		return "", false
	}
	return captured, true
}

// Valid reports whether s is already in canonical amount form.
func Valid(s string) bool {
	return canonicalPattern.MatchString(s)
}
