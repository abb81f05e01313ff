package textutil

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, " ")
	return name
}

// SimilarName reports whether two free-text names refer to the same thing, allowing for
// casing, spacing and small typos.
func SimilarName(a, b string) bool {
	a = NormalizeName(a)
	b = NormalizeName(b)
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	return matchr.JaroWinkler(a, b, false) >= 0.95
}

// TrimLabel removes every occurrence of label from s and trims the result.
func TrimLabel(s string, labels ...string) string {
	for _, l := range labels {
		s = strings.ReplaceAll(s, l, "")
	}
	return strings.TrimSpace(s)
}

// IsDigits reports whether s is non-empty and made only of ascii digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

var digitRun = regexp.MustCompile(`\d+`)

// FirstInt extracts the first run of digits in s.
func FirstInt(s string) (int, bool) {
	match := digitRun.FindString(s)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseDecimal parses a number that may use a comma as its decimal separator.
func ParseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return strconv.ParseFloat(s, 64)
}
