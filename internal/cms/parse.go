package cms

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"cms-downloader/internal/components/telemetry"
	"cms-downloader/internal/layout"
	"cms-downloader/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_parse_courses     = "parse.courses"
	report_parse_course_page = "parse.course-page"
)

const coursesTableSelector = "#ContentPlaceHolderright_ContentPlaceHoldercontent_GridViewcourses"

var (
	courseLinkRegex = regexp.MustCompile(`/apps/student/CourseViewStn\?id(.*)`)
	courseRowRegex  = regexp.MustCompile(`\n*\(\|([^|]*)\|\)([^(]*)\(.*\n*`)
	fileNumberRegex = regexp.MustCompile(`^\s*[0-9]* - `)
)

// courseRowText turns a course table row ("(|CSEN 401|) Computer Programming
// Lab (1234)") into "CSEN 401- Computer Programming Lab", it returns false
// for rows that are not courses.
func courseRowText(row string) (string, bool) {
	groups := courseRowRegex.FindStringSubmatch(row)
	if groups == nil {
		return "", false
	}
	return strings.TrimSpace(groups[1] + "-" + groups[2]), true
}

// ParseCourses reads the course list out of the "view all courses" page.
// Course texts and links are paired in document order.
func ParseCourses(host *url.URL, contents []byte, tel telemetry.API) ([]Course, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(contents))
	if err != nil {
		return nil, err
	}

	var links []*url.URL
	for _, a := range htmlutil.GetAnchors(host, doc.Find("a")) {
		if courseLinkRegex.MatchString(a.Url.String()) {
			links = append(links, a.Url)
		}
	}

	var texts []string
	doc.Find(coursesTableSelector).Find("tr").Each(func(_ int, row *goquery.Selection) {
		text, ok := courseRowText(row.Text())
		if ok {
			texts = append(texts, text)
		}
	})

	if len(texts) != len(links) {
		tel.ReportWarning(
			report_parse_courses,
			fmt.Errorf("found %d course rows but %d course links", len(texts), len(links)),
		)
	}

	count := min(len(texts), len(links))
	courses := make([]Course, count)
	for i := 0; i < count; i++ {
		courses[i] = newCourse(texts[i], links[i])
	}
	return courses, nil
}

// stripFileNumber removes the "<n> - " the CMS puts in front of file names.
func stripFileNumber(text string) string {
	return strings.TrimSpace(fileNumberRegex.ReplaceAllString(htmlutil.CleanText(text), ""))
}

func fileExtension(link *url.URL) string {
	ext := path.Ext(link.Path)
	return strings.TrimPrefix(ext, ".")
}

// ParseCoursePage fills in the weeks of `course` from its course page. Every
// `.card-body` with a `strong` is a file, its week is the `h2` under the
// card's fourth ancestor.
func ParseCoursePage(host *url.URL, course Course, contents []byte, tel telemetry.API) (Course, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(contents))
	if err != nil {
		return course, err
	}

	course.Weeks = nil
	weekIndex := map[string]int{}

	doc.Find(".card-body").Each(func(_ int, card *goquery.Selection) {
		strong := card.Find("strong").First()
		if strong.Length() == 0 {
			return
		}
		name := stripFileNumber(strong.Text())

		href, ok := card.Find("a").First().Attr("href")
		if !ok {
			tel.ReportWarning(
				report_parse_course_page,
				fmt.Errorf("file card has no link"),
				course.Code,
				name,
			)
			return
		}
		link, err := host.Parse(strings.TrimSpace(href))
		if err != nil {
			tel.ReportWarning(
				report_parse_course_page,
				fmt.Errorf("parse file link: %w", err),
				course.Code,
				href,
			)
			return
		}

		heading := htmlutil.CleanText(
			card.Parent().Parent().Parent().Parent().Find("h2").First().Text(),
		)
		label := layout.WeekLabel(heading)

		file := File{
			Url:         link,
			Name:        layout.SanitizeFilename(name),
			Description: layout.SanitizeFilename(stripFileNumber(card.Find("div").First().Text())),
			Extension:   fileExtension(link),
			Week:        label,
		}

		i, ok := weekIndex[label]
		if !ok {
			i = len(course.Weeks)
			weekIndex[label] = i
			course.Weeks = append(course.Weeks, Week{Heading: heading, Label: label})
		}
		course.Weeks[i].Files = append(course.Weeks[i].Files, file)
	})

	return course, nil
}
