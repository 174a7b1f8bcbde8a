package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

const FuzzyThreshold = 0.9

// Similarity returns the Jaro-Winkler similarity of the two names after
// lowercasing and collapsing their whitespace.
func Similarity(a, b string) float64 {
	a = whitespaceRegex.ReplaceAllString(strings.ToLower(strings.TrimSpace(a)), " ")
	b = whitespaceRegex.ReplaceAllString(strings.ToLower(strings.TrimSpace(b)), " ")
	return matchr.JaroWinkler(a, b, false)
}

// MatchCourse reports if `filter` selects the course with the given code and
// name. A filter selects a course when it equals the code (ignoring case and
// whitespace) or when it is similar enough to the name.
func MatchCourse(code, name, filter string) bool {
	if NormalizeName(filter) == "" {
		return false
	}
	if NormalizeName(code) == NormalizeName(filter) {
		return true
	}
	return Similarity(name, filter) >= FuzzyThreshold
}
