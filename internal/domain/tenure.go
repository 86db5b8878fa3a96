package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrTenureFormat is returned when a tenure string cannot be parsed
var ErrTenureFormat = errors.New("tenure must look like \"12 Months\" or \"2 Years\"")

// DefaultTenure is the fallback tenure used when an application carries an
// unparseable tenure string
const DefaultTenure = "12 Months"

// ParseTenureToMonths converts a human-entered tenure string into a month
// count. Accepted forms are "<n> Month(s)" and "<n> Year(s)", case-insensitive;
// years are converted at 12 months per year.
func ParseTenureToMonths(s string) (int, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) != 2 {
		return 0, ErrTenureFormat
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 1 {
		return 0, ErrTenureFormat
	}

	switch strings.TrimSuffix(strings.ToLower(fields[1]), "s") {
	case "year":
		return n * 12, nil
	case "month":
		return n, nil
	}
	return 0, ErrTenureFormat
}

// ParseTenureOrDefault parses a tenure string, falling back to the given
// default when the input is unparseable. The fallback itself must be valid;
// a bad fallback is a programming error and yields DefaultTenure's months.
func ParseTenureOrDefault(s, fallback string) int {
	if months, err := ParseTenureToMonths(s); err == nil {
		return months
	}
	if months, err := ParseTenureToMonths(fallback); err == nil {
		return months
	}
	months, _ := ParseTenureToMonths(DefaultTenure)
	return months
}

// FormatMonthsToTenure renders a month count in canonical tenure form:
// whole years as "N Years", anything else as "N Months".
// FormatMonthsToTenure is the inverse of ParseTenureToMonths for positive m.
func FormatMonthsToTenure(months int) string {
	if months > 0 && months%12 == 0 {
		return fmt.Sprintf("%d Years", months/12)
	}
	return fmt.Sprintf("%d Months", months)
}
