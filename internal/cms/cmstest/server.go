// Package cmstest serves a fake CMS for tests.
package cmstest

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

type File struct {
	// Title is what the card's `strong` shows, like "3 - Lecture 1: Intro".
	Title       string
	Description string
	// Path is the href of the file, like "/Uploads/lecture1.pdf".
	Path     string
	Contents []byte
	// Status is the status code the file is served with, 0 means 200.
	Status int
}

type Week struct {
	Heading string
	Files   []File
}

type Course struct {
	Id    string
	Code  string
	Name  string
	Weeks []Week
}

type Server struct {
	*httptest.Server

	Username string
	Password string
	Courses  []Course

	mutex sync.Mutex
	hits  map[string]int
}

// NewServer starts a CMS that only accepts basic auth with the given
// credentials. Call Close when done.
func NewServer(username, password string, courses []Course) *Server {
	s := &Server{
		Username: username,
		Password: password,
		Courses:  courses,
		hits:     map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Hits returns how many authorized requests were made to `path`.
func (s *Server) Hits(path string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.hits[path]
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok || username != s.Username || password != s.Password {
		w.Header().Set("WWW-Authenticate", `Basic realm="cms"`)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	s.mutex.Lock()
	s.hits[r.URL.Path]++
	s.mutex.Unlock()

	switch r.URL.Path {
	case "/":
		writeHtml(w, "<html><body><h1>Welcome</h1></body></html>")
		return
	case "/apps/student/ViewAllCourseStn":
		writeHtml(w, s.coursesPage())
		return
	case "/apps/student/CourseViewStn":
		for _, c := range s.Courses {
			if c.Id == r.URL.Query().Get("id") {
				writeHtml(w, coursePage(c))
				return
			}
		}
	}

	for _, c := range s.Courses {
		for _, week := range c.Weeks {
			for _, f := range week.Files {
				if f.Path != r.URL.Path {
					continue
				}
				status := f.Status
				if status == 0 {
					status = http.StatusOK
				}
				w.Header().Set("Content-Length", fmt.Sprint(len(f.Contents)))
				w.WriteHeader(status)
				w.Write(f.Contents)
				return
			}
		}
	}

	http.NotFound(w, r)
}

func writeHtml(w http.ResponseWriter, contents string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(contents))
}

func (s *Server) coursesPage() string {
	var rows, links strings.Builder
	rows.WriteString("<tr><th>Course</th><th>Status</th></tr>\n")
	for _, c := range s.Courses {
		fmt.Fprintf(
			&rows,
			"<tr>\n<td>(|%s|) %s (%s)</td>\n</tr>\n",
			html.EscapeString(c.Code), html.EscapeString(c.Name), c.Id,
		)
		fmt.Fprintf(
			&links,
			`<a href="/apps/student/CourseViewStn?id=%s&sid=59">View</a>`+"\n",
			c.Id,
		)
	}
	return fmt.Sprintf(`<html><body>
<a href="/apps/student/HomePageStn">Home</a>
<table id="ContentPlaceHolderright_ContentPlaceHoldercontent_GridViewcourses">
%s</table>
%s</body></html>`, rows.String(), links.String())
}

func coursePage(c Course) string {
	var weeks strings.Builder
	for _, week := range c.Weeks {
		var cards strings.Builder
		for _, f := range week.Files {
			fmt.Fprintf(&cards, `<div class="card mb-4"><div class="card-body">
<div>%s</div>
<strong>%s</strong>
<a download href="%s">Download</a>
</div></div>
`, html.EscapeString(f.Description), html.EscapeString(f.Title), f.Path)
		}
		fmt.Fprintf(&weeks, `<div class="weeksdata">
<h2 class="text-big">%s</h2>
<div class="p-3"><div class="row">
%s</div></div>
</div>
`, html.EscapeString(week.Heading), cards.String())
	}

	return fmt.Sprintf(`<html><body>
<div class="card"><div class="card-body"><h5>Filter weeks</h5><a href="#">All</a></div></div>
<h3>(|%s|) %s</h3>
%s</body></html>`, html.EscapeString(c.Code), html.EscapeString(c.Name), weeks.String())
}
