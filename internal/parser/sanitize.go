package parser

import (
	"strconv"
	"strings"
	"unicode"
)

// Field length limits applied during sanitization.
const (
	maxIDLength     = 50
	maxTitleLength  = 200
	maxStringLength = 500
	maxURLLength    = 2000
)

// markupStripper removes characters usable for markup or script injection
// through the store's later consumers.
var markupStripper = strings.NewReplacer(
	"<", "",
	">", "",
	`"`, "",
	"'", "",
	`\`, "",
)

// sanitizeString strips control characters and markup fragments, collapses
// whitespace, and truncates to max runes.
func sanitizeString(raw string, max int) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, raw)
	clean = markupStripper.Replace(clean)
	clean = strings.Join(strings.Fields(clean), " ")

	if runes := []rune(clean); max > 0 && len(runes) > max {
		clean = string(runes[:max])
	}
	return clean
}

// parsePrice coerces price text such as "12.345 €" or "12.345,50" to a
// numeric value. Unparsable input yields nil, never an error.
func parsePrice(raw string) *float64 {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if !strings.ContainsAny(s, "0123456789") {
		return nil
	}

	hasDot := strings.Contains(s, ".")
	hasComma := strings.Contains(s, ",")
	switch {
	case hasDot && hasComma:
		// European format: dots group thousands, the comma marks decimals.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case hasComma:
		s = strings.Replace(s, ",", ".", 1)
	case hasDot:
		// "12.345" is a thousands group, "5.3" a decimal fraction.
		if strings.Count(s, ".") > 1 || len(s)-strings.LastIndex(s, ".")-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseInt coerces text such as "45.000 km" or "2019" to an integer by
// keeping digits only. Unparsable input yields nil.
func parseInt(raw string) *int {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return nil
	}
	v, err := strconv.Atoi(b.String())
	if err != nil {
		return nil
	}
	return &v
}
