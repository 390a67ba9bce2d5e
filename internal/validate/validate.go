package validate

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// Bricklink set numbers: digits plus an optional "-N" variant suffix,
	// e.g. "75192" or "75192-1".
	reSetNo = regexp.MustCompile(`^[0-9]{3,7}(-[0-9]{1,2})?$`)
	// Part numbers are provider-defined alphanumerics like "3001" or "2454b".
	rePartNo = regexp.MustCompile(`^[A-Za-z0-9._-]{1,32}$`)
	reQ      = regexp.MustCompile(`^[A-Za-z0-9 _'-]{1,50}$`)
)

// SetNo validates and normalizes a provider set number.
func SetNo(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 10 {
		return "", false
	}
	return s, reSetNo.MatchString(s)
}

// PartNo validates a provider part number.
func PartNo(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && rePartNo.MatchString(s)
}

// Q validates a catalog search query: trims, enforces allowed characters
// and max length.
func Q(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if len(s) > 50 {
		s = s[:50]
	}
	return s, reQ.MatchString(s)
}

// Limit clamps a result-count parameter into [1, max] with a default.
func Limit(s string, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
