package domain

import "time"

// ParseTimestamp parses RFC 3339 text with an explicit UTC offset.
// Fractional seconds are optional.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// FormatTimestamp renders t in UTC with nanosecond precision. Trailing
// zeros of the fraction are dropped, so whole seconds have no fraction.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// NormalizeTimestamp reparses s and renders it in canonical form.
func NormalizeTimestamp(s string) (string, error) {
	t, err := ParseTimestamp(s)
	if err != nil {
		return "", err
	}
	return FormatTimestamp(t), nil
}
