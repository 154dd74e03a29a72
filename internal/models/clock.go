package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var hhmmPattern = regexp.MustCompile(`^[0-9]{4}$`)

var ErrInvalidClock = errors.New("time must be four digits HHMM")

// ClockFromHHMM converts form input such as "1430" into the server's
// "14:30:00" representation.
func ClockFromHHMM(hhmm string) (string, error) {
	hhmm = strings.TrimSpace(hhmm)
	if !hhmmPattern.MatchString(hhmm) {
		return "", fmt.Errorf("%w: %q", ErrInvalidClock, hhmm)
	}
	if hhmm[:2] > "23" || hhmm[2:] > "59" {
		return "", fmt.Errorf("%w: %q out of range", ErrInvalidClock, hhmm)
	}
	return hhmm[:2] + ":" + hhmm[2:] + ":00", nil
}

// NormalizeHHMM strips separators from a server time and returns exactly
// four characters. Empty input stays empty.
func NormalizeHHMM(clock string) string {
	s := strings.ReplaceAll(strings.TrimSpace(clock), ":", "")
	if s == "" {
		return ""
	}
	if len(s) > 4 {
		return s[:4]
	}
	return strings.Repeat("0", 4-len(s)) + s
}
