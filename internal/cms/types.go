package cms

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"cms-downloader/internal/layout"
)

var ErrAuthentication = errors.New("Authentication failed.")

// StatusError is returned when the CMS responds with anything other than 200.
type StatusError struct {
	Code int
	Url  string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("%s responded with status %d", e.Url, e.Code)
}

type Course struct {
	// Id is the `id` query parameter of the course page url.
	Id string
	// Text is the course table row, "<code>- <name>".
	Text  string
	Code  string
	Name  string
	Url   *url.URL
	Weeks []Week
}

// newCourse splits `text` on the first dash into its code and name.
func newCourse(text string, link *url.URL) Course {
	text = strings.TrimSpace(text)
	code, name, _ := strings.Cut(text, "-")
	return Course{
		Id:   link.Query().Get("id"),
		Text: text,
		Code: strings.TrimSpace(code),
		Name: strings.TrimSpace(name),
		Url:  link,
	}
}

func (c Course) DisplayName() string {
	return fmt.Sprintf("[%s] %s", c.Code, c.Name)
}

// Dir is the directory the course's files are stored under.
func (c Course) Dir() string {
	return layout.CourseDir(c.Code, c.Name)
}

// Files returns the files of every week in page order.
func (c Course) Files() []File {
	var files []File
	for _, w := range c.Weeks {
		files = append(files, w.Files...)
	}
	return files
}

type Week struct {
	Heading string
	Label   string
	Files   []File
}

type File struct {
	Url         *url.URL
	Name        string
	Description string
	Extension   string
	Week        string
}
