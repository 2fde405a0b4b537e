package uiutil

import (
	"strconv"
	"time"
)

const FriendlyDateTimeLayout = "Jan 2, 2006 3:04 PM"

// FormatFriendlyDateTime returns a consistent, user-friendly timestamp representation.
// Order dates carry no zone, so they are formatted as given.
func FormatFriendlyDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(FriendlyDateTimeLayout)
}

// FormatPrice renders an amount with two decimals and a dollar sign.
func FormatPrice(amount float64) string {
	s := strconv.FormatFloat(amount, 'f', 2, 64)
	if amount < 0 {
		return "-$" + s[1:]
	}
	return "$" + s
}

// Plural returns singular when n is 1 and plural otherwise.
func Plural(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
