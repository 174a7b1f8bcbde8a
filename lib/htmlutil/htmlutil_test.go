package htmlutil

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "  Lecture 1 ", expected: "Lecture 1"},
		{input: "\n\tWeek:   2023-02-11\n", expected: "Week: 2023-02-11"},
		{input: "a ​b", expected: "a b"},
	}

	for _, row := range table {
		require.Equal(t, row.expected, CleanText(row.input))
	}
}

func TestGetAnchors(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
<div>
	<a href="/apps/student/CourseViewStn?id=12&sid=59">  Course
		One </a>
	<a>no href</a>
	<a href="https://other.example/file.pdf">external</a>
</div>`))
	if err != nil {
		t.Fatal(err)
	}

	base, _ := url.Parse("https://cms.example.edu/apps/student/ViewAllCourseStn")
	anchors := GetAnchors(base, doc.Find("a"))
	require.Len(t, anchors, 2)

	require.Equal(t, "Course One", anchors[0].Name)
	require.Equal(t, "https://cms.example.edu/apps/student/CourseViewStn?id=12&sid=59", anchors[0].Url.String())
	require.Equal(t, "https://other.example/file.pdf", anchors[1].Url.String())
}
