package templates

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	// SummaryLength bounds job description excerpts.
	SummaryLength = 200
	ellipsis      = "..."

	defaultCurrency = "USD"
	detailSeparator = " • "
)

var postedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// FormatNumber renders v with en-US thousands separators, e.g. 12500 -> "12,500".
func FormatNumber(v float64) string {
	return message.NewPrinter(language.English).Sprint(number.Decimal(v))
}

// FormatSalary reports false when there is nothing to show.
func FormatSalary(s *Salary) (string, bool) {
	if s == nil {
		return "", false
	}
	if text := strings.TrimSpace(s.Text); text != "" {
		return text, true
	}

	currency := s.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	switch {
	case s.Min > 0 && s.Max > 0:
		return fmt.Sprintf("%s %s - %s", currency, FormatNumber(s.Min), FormatNumber(s.Max)), true
	case s.Min > 0:
		return fmt.Sprintf("%s %s", currency, FormatNumber(s.Min)), true
	case s.Max > 0:
		return fmt.Sprintf("%s %s", currency, FormatNumber(s.Max)), true
	default:
		return "", false
	}
}

// Plural appends "s" to word when n is greater than one.
func Plural(n int, word string) string {
	if n > 1 {
		return word + "s"
	}
	return word
}

// FormatPrice prefixes a numeric price with currency and thousands
// separators; anything else is shown as sent.
func FormatPrice(currency string, price FlexNumber) string {
	if v, ok := price.Float(); ok {
		return currency + FormatNumber(v)
	}
	return currency + price.String()
}

// FormatDays renders "1 day", "5 days" or a non-numeric value as sent.
func FormatDays(days FlexNumber) string {
	v, ok := days.Float()
	if !ok {
		return days.String()
	}
	if v > 1 {
		return FormatNumber(v) + " days"
	}
	return FormatNumber(v) + " day"
}

// Truncate cuts s to at most n runes and marks the cut with "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + ellipsis
}

// FormatPostedDate renders a date as M/D/YYYY, or returns raw when it cannot be parsed.
func FormatPostedDate(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range postedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("1/2/2006")
		}
	}
	return raw
}

func joinDetails(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, detailSeparator)
}
