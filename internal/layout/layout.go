// Package layout computes where course materials live on disk.
package layout

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const maxFilenameBytes = 255

var reservedNames = func() map[string]struct{} {
	names := map[string]struct{}{
		"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	}
	for i := 1; i <= 9; i++ {
		names[fmt.Sprintf("COM%d", i)] = struct{}{}
		names[fmt.Sprintf("LPT%d", i)] = struct{}{}
	}
	return names
}()

func isReserved(name string) bool {
	stem := name
	if i := strings.IndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}
	_, ok := reservedNames[strings.ToUpper(strings.TrimSpace(stem))]
	return ok
}

// SanitizeFilename turns `s` into a name that is valid on every common
// filesystem. It never returns an empty string.
func SanitizeFilename(s string) string {
	var out strings.Builder
	for _, r := range s {
		if r == utf8.RuneError || unicode.IsControl(r) {
			continue
		}
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			continue
		}
		out.WriteRune(r)
	}

	name := strings.TrimRight(out.String(), ". ")
	if isReserved(name) {
		name = "__" + name
	}
	name = truncate(name, maxFilenameBytes)
	if name == "" {
		return "__"
	}
	return name
}

// truncate cuts `name` to at most `limit` bytes without splitting a rune.
func truncate(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return strings.TrimRight(name[:cut], ". ")
}

var weekPrefix = regexp.MustCompile(`(?i)^\s*week\s*:?\s*`)

// WeekLabel turns a CMS week heading ("Week: 2023-02-11") into its
// directory label ("W 02-11"). Headings that are not dates are sanitized as is.
func WeekLabel(heading string) string {
	rest := strings.TrimSpace(weekPrefix.ReplaceAllString(heading, ""))
	date, err := time.Parse(time.DateOnly, rest)
	if err == nil {
		return date.Format("W 01-02")
	}
	return SanitizeFilename(rest)
}

// CourseDir is the directory name of a course, "[<code>] <name>".
func CourseDir(code, name string) string {
	return SanitizeFilename(fmt.Sprintf("[%s] %s", code, name))
}

// FilePath is `<root>/<course dir>/<week label>/<name>.<ext>`. `name` is
// expected to be sanitized already.
func FilePath(root, courseDir, weekLabel, name, ext string) string {
	filename := name
	if ext != "" {
		ext = SanitizeFilename(ext)
		stem := truncate(name, maxFilenameBytes-len(ext)-1)
		if stem == "" {
			stem = "__"
		}
		filename = fmt.Sprintf("%s.%s", stem, ext)
	}
	return filepath.Join(root, courseDir, weekLabel, filename)
}

// Allowed reports if `ext` is in `allowed`, comparing case-insensitively and
// ignoring a leading dot. An empty `allowed` allows every extension.
func Allowed(ext string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == ext {
			return true
		}
	}
	return false
}
