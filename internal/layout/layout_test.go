package layout

import (
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "Lecture 1: Intro", expected: "Lecture 1 Intro"},
		{input: `a/b\c*d?e"f<g>h|i`, expected: "abcdefghi"},
		{input: "tab\there\x00", expected: "tabhere"},
		{input: "trailing. . ", expected: "trailing"},
		{input: "CON", expected: "__CON"},
		{input: "lpt3.txt", expected: "__lpt3.txt"},
		{input: "CONSOLE", expected: "CONSOLE"},
		{input: "???", expected: "__"},
		{input: "", expected: "__"},
	}

	for _, row := range table {
		require.Equal(t, row.expected, SanitizeFilename(row.input), "input %q", row.input)
	}
}

func TestSanitizeFilenameTruncates(t *testing.T) {
	long := strings.Repeat("é", 200)
	name := SanitizeFilename(long)
	require.LessOrEqual(t, len(name), 255)
	require.True(t, utf8.ValidString(name))
	require.Equal(t, 127, utf8.RuneCountInString(name))
}

func TestWeekLabel(t *testing.T) {
	require.Equal(t, "W 02-11", WeekLabel("Week: 2023-02-11"))
	require.Equal(t, "W 12-31", WeekLabel("  Week: 2022-12-31\n"))
	require.Equal(t, "Revision", WeekLabel("Week: Revision"))
	require.Equal(t, "FinalProject", WeekLabel("Final/Project"))
}

func TestCourseDir(t *testing.T) {
	require.Equal(
		t, "[CSEN 401] Computer Programming Lab",
		CourseDir("CSEN 401", "Computer Programming Lab"),
	)
}

func TestFilePath(t *testing.T) {
	path := FilePath("downloads", "[CSEN 401] Lab", "W 02-11", "Lecture 1 Intro", "pdf")
	require.Equal(t, filepath.Join("downloads", "[CSEN 401] Lab", "W 02-11", "Lecture 1 Intro.pdf"), path)

	path = FilePath("downloads", "c", "w", "README", "")
	require.Equal(t, filepath.Join("downloads", "c", "w", "README"), path)

	// long titles keep their extension and stay distinct per extension
	long := SanitizeFilename(strings.Repeat("a", 300))
	pdf := filepath.Base(FilePath("downloads", "c", "W 02-11", long, "pdf"))
	zip := filepath.Base(FilePath("downloads", "c", "W 02-11", long, "zip"))
	require.Len(t, pdf, maxFilenameBytes)
	require.Equal(t, ".pdf", filepath.Ext(pdf))
	require.Equal(t, ".zip", filepath.Ext(zip))
	require.NotEqual(t, pdf, zip)

	// multi byte runes are never split
	wide := SanitizeFilename(strings.Repeat("é", 200))
	base := filepath.Base(FilePath("downloads", "c", "w", wide, "pdf"))
	require.True(t, utf8.ValidString(base))
	require.LessOrEqual(t, len(base), maxFilenameBytes)
	require.Equal(t, ".pdf", filepath.Ext(base))
}

func TestAllowed(t *testing.T) {
	require.True(t, Allowed("pdf", nil))
	require.True(t, Allowed("PDF", []string{"pdf", "pptx"}))
	require.True(t, Allowed(".pptx", []string{"pdf", ".PPTX"}))
	require.False(t, Allowed("zip", []string{"pdf"}))
}
