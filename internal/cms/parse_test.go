package cms

import (
	"net/url"
	"testing"

	"cms-downloader/internal/components/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var testHost, _ = url.Parse("https://cms.guc.edu.eg")

func TestCourseRowText(t *testing.T) {
	table := []struct {
		row      string
		expected string
		ok       bool
	}{
		{
			row:      "(|CSEN 401|) Computer Programming Lab (1234)",
			expected: "CSEN 401- Computer Programming Lab",
			ok:       true,
		},
		{
			row:      "\n\n(|DMET 502|) Computer Graphics (77)\n",
			expected: "DMET 502- Computer Graphics",
			ok:       true,
		},
		{row: "CourseStatus", ok: false},
	}

	for _, row := range table {
		text, ok := courseRowText(row.row)
		require.Equal(t, row.ok, ok, row.row)
		require.Equal(t, row.expected, text, row.row)
	}
}

func TestNewCourse(t *testing.T) {
	link, _ := url.Parse("https://cms.guc.edu.eg/apps/student/CourseViewStn?id=1234&sid=59")
	course := newCourse("CSEN 401- Computer Programming Lab", link)
	require.Equal(t, "1234", course.Id)
	require.Equal(t, "CSEN 401", course.Code)
	require.Equal(t, "Computer Programming Lab", course.Name)
	require.Equal(t, "[CSEN 401] Computer Programming Lab", course.DisplayName())
	require.Equal(t, "[CSEN 401] Computer Programming Lab", course.Dir())
}

const coursesHtml = `<html><body>
<a href="/apps/student/HomePageStn">Home</a>
<table id="ContentPlaceHolderright_ContentPlaceHoldercontent_GridViewcourses">
<tr><th>Course</th><th>Status</th></tr>
<tr><td>(|CSEN 401|) Computer Programming Lab (1234)</td><td>Active</td></tr>
<tr><td>(|MATH 203|) Mathematics I (99)</td><td>Active</td></tr>
</table>
<a href="/apps/student/CourseViewStn?id=1234&sid=59">View</a>
<a href="/apps/student/CourseViewStn?id=99&sid=59">View</a>
<a href="/apps/student/CourseViewStn?id=100&sid=59">View</a>
</body></html>`

func TestParseCourses(t *testing.T) {
	tel := telemetry.NewTestAPI(t)
	courses, err := ParseCourses(testHost, []byte(coursesHtml), tel)
	require.NoError(t, err)
	require.Len(t, courses, 2)

	require.Equal(t, "1234", courses[0].Id)
	require.Equal(t, "CSEN 401- Computer Programming Lab", courses[0].Text)
	require.Equal(t, "https://cms.guc.edu.eg/apps/student/CourseViewStn?id=1234&sid=59", courses[0].Url.String())
	require.Equal(t, "MATH 203", courses[1].Code)
	require.Equal(t, "Mathematics I", courses[1].Name)

	// the third link has no course row
	require.Len(t, tel.Reports("warning"), 1)
}

const coursePageHtml = `<html><body>
<div class="card"><div class="card-body"><h5>Filter weeks</h5><a href="#">All</a></div></div>
<div class="weeksdata">
	<h2 class="text-big">Week: 2023-02-11</h2>
	<div class="p-3"><div class="row">
		<div class="card"><div class="card-body">
			<div>1 - Course outline</div>
			<strong>1 - Course Outline</strong>
			<a href="/Uploads/CSEN401/outline.pdf">Download</a>
		</div></div>
		<div class="card"><div class="card-body">
			<div>3 - Lecture 1</div>
			<strong>3 - Lecture 1: Intro</strong>
			<a href="/Uploads/CSEN401/lecture1.PPTX">Download</a>
		</div></div>
		<div class="card"><div class="card-body">
			<div>broken card</div>
			<strong>4 - No link</strong>
		</div></div>
	</div></div>
</div>
<div class="weeksdata">
	<h2 class="text-big">Week: 2023-02-18</h2>
	<div class="p-3"><div class="row">
		<div class="card"><div class="card-body">
			<div>Lab</div>
			<strong>5 - Lab 1</strong>
			<a href="/Uploads/CSEN401/lab1">Download</a>
		</div></div>
	</div></div>
</div>
</body></html>`

func TestParseCoursePage(t *testing.T) {
	tel := telemetry.NewTestAPI(t)
	link, _ := url.Parse("https://cms.guc.edu.eg/apps/student/CourseViewStn?id=1234&sid=59")
	course := newCourse("CSEN 401- Computer Programming Lab", link)

	course, err := ParseCoursePage(testHost, course, []byte(coursePageHtml), tel)
	require.NoError(t, err)
	require.Len(t, course.Weeks, 2)

	mustParse := func(s string) *url.URL {
		u, err := url.Parse(s)
		require.NoError(t, err)
		return u
	}

	expected := []Week{
		{
			Heading: "Week: 2023-02-11",
			Label:   "W 02-11",
			Files: []File{
				{
					Url:         mustParse("https://cms.guc.edu.eg/Uploads/CSEN401/outline.pdf"),
					Name:        "Course Outline",
					Description: "Course outline",
					Extension:   "pdf",
					Week:        "W 02-11",
				},
				{
					Url:         mustParse("https://cms.guc.edu.eg/Uploads/CSEN401/lecture1.PPTX"),
					Name:        "Lecture 1 Intro",
					Description: "Lecture 1",
					Extension:   "PPTX",
					Week:        "W 02-11",
				},
			},
		},
		{
			Heading: "Week: 2023-02-18",
			Label:   "W 02-18",
			Files: []File{
				{
					Url:         mustParse("https://cms.guc.edu.eg/Uploads/CSEN401/lab1"),
					Name:        "Lab 1",
					Description: "Lab",
					Extension:   "",
					Week:        "W 02-18",
				},
			},
		},
	}
	if diff := cmp.Diff(expected, course.Weeks); diff != "" {
		t.Fatal("weeks (-want +got):\n", diff)
	}
	require.Len(t, course.Files(), 3)
	require.Len(t, tel.Reports("warning"), 1)
}
