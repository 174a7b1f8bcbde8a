// Package syncer runs one sync: authenticate, discover courses, download
// whatever is new.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"cms-downloader/internal/cms"
	"cms-downloader/internal/components/assert"
	"cms-downloader/internal/components/telemetry"
	"cms-downloader/internal/config"
	"cms-downloader/internal/credentials"
	"cms-downloader/internal/downloader"
	"cms-downloader/internal/index"
	"cms-downloader/internal/layout"
	"cms-downloader/internal/mirror"
	"cms-downloader/internal/notify"
	"cms-downloader/lib/osutil"
	"cms-downloader/lib/textutil"
)

const (
	report_syncer_connect     = "syncer.connect"
	report_syncer_courses     = "syncer.courses"
	report_syncer_course_page = "syncer.course-page"
	report_syncer_plan        = "syncer.plan"
	report_syncer_record      = "syncer.record"
	report_syncer_mirror      = "syncer.mirror"
	report_syncer_notify      = "syncer.notify"
)

// maxPromptAttempts bounds how many times the user is asked for credentials.
const maxPromptAttempts = 3

type CMS interface {
	Authenticate(ctx context.Context) error
	Courses(ctx context.Context) ([]cms.Course, error)
	CoursePage(ctx context.Context, course cms.Course) (cms.Course, error)
	downloader.Source
}

type Notifier interface {
	Send(ctx context.Context, report notify.Report) error
}

type Deps struct {
	Config config.Config
	// NewCMS creates a client that logs in with `creds`.
	NewCMS   func(creds credentials.Credentials) (CMS, error)
	Store    credentials.Store
	Prompter credentials.Prompter
	Index    *index.Store
	// Mirror, Notifier and Progress are optional.
	Mirror   mirror.Mirror
	Notifier Notifier
	Progress io.Writer
	Tel      telemetry.API
}

type Options struct {
	// Refresh scrapes the course list even when the index has a fresh one.
	Refresh bool
	// DryRun stops after planning, nothing is downloaded.
	DryRun bool
}

type Syncer struct {
	deps Deps
	opts Options
	tel  telemetry.API
}

func New(deps Deps, opts Options) Syncer {
	assert.NotNil(deps.NewCMS)
	assert.NotNil(deps.Prompter)
	assert.NotNil(deps.Index)
	assert.NotNil(deps.Tel)

	return Syncer{
		deps: deps,
		opts: opts,
		tel:  telemetry.NewScopedAPI("syncer", deps.Tel),
	}
}

type CourseSummary struct {
	Course     cms.Course
	Downloaded []downloader.Result
	Failed     []downloader.Result
}

type Summary struct {
	RunId   string
	Courses []CourseSummary
	// Pending is every file that would be downloaded, it is only set on a
	// dry run.
	Pending []downloader.Job

	Downloaded int
	Skipped    int
	Failed     int
}

// Plan is everything a sync would download.
type Plan struct {
	Client  CMS
	Courses []cms.Course
	Jobs    []downloader.Job
	Skipped int
}

func (s Syncer) authenticated(ctx context.Context, creds credentials.Credentials) (CMS, error) {
	client, err := s.deps.NewCMS(creds)
	if err != nil {
		return nil, err
	}
	err = client.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// prompt asks for credentials until the CMS accepts them, the client that
// verified them is returned.
func (s Syncer) prompt(ctx context.Context) (CMS, error) {
	var client CMS
	verify := func(ctx context.Context, creds credentials.Credentials) error {
		c, err := s.authenticated(ctx, creds)
		if err != nil {
			return err
		}
		client = c
		return nil
	}

	creds, err := credentials.Acquire(ctx, s.deps.Store, s.deps.Prompter, verify, maxPromptAttempts)
	if err != nil {
		return nil, err
	}
	if client != nil {
		return client, nil
	}
	// the credentials were saved in between, Acquire does not verify those
	return s.authenticated(ctx, creds)
}

// connect returns an authenticated client. Credentials in the config are used
// as is, stored credentials that are rejected are removed and asked for
// again.
func (s Syncer) connect(ctx context.Context) (CMS, error) {
	cfg := s.deps.Config
	if cfg.Username != "" && cfg.Password != "" {
		return s.authenticated(ctx, credentials.Credentials{
			Username: cfg.Username,
			Password: cfg.Password,
		})
	}

	stored, err := s.deps.Store.Load()
	if errors.Is(err, credentials.ErrNoCredentials) {
		return s.prompt(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	client, err := s.authenticated(ctx, stored)
	if !errors.Is(err, cms.ErrAuthentication) {
		return client, err
	}

	s.tel.ReportWarning(report_syncer_connect, fmt.Errorf("stored credentials were rejected: %w", err), stored.Username)
	err = s.deps.Store.Remove()
	if err != nil {
		return nil, fmt.Errorf("remove credentials: %w", err)
	}
	return s.prompt(ctx)
}

func (s Syncer) cachedCourses(ctx context.Context) ([]cms.Course, bool) {
	if s.opts.Refresh {
		return nil, false
	}
	courses, ok, err := s.deps.Index.CachedCourses(ctx, s.deps.Config.Cache.CourseListLifetime())
	if err != nil {
		s.tel.ReportWarning(report_syncer_courses, fmt.Errorf("read cached courses: %w", err))
		return nil, false
	}
	if ok {
		s.tel.ReportDebug("using cached course list", len(courses))
	}
	return courses, ok
}

func (s Syncer) courses(ctx context.Context, client CMS) ([]cms.Course, error) {
	courses, ok := s.cachedCourses(ctx)
	if ok {
		return courses, nil
	}

	courses, err := client.Courses(ctx)
	if err != nil {
		return nil, err
	}
	err = s.deps.Index.ReplaceCourses(ctx, courses)
	if err != nil {
		s.tel.ReportBroken(report_syncer_courses, fmt.Errorf("cache courses: %w", err))
	}
	return courses, nil
}

// Courses returns every course of the account, it only logs in when the
// cached course list is stale.
func (s Syncer) Courses(ctx context.Context) ([]cms.Course, error) {
	courses, ok := s.cachedCourses(ctx)
	if ok {
		return courses, nil
	}
	client, err := s.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	courses, err = s.courses(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("load courses: %w", err)
	}
	return courses, nil
}

// selectCourses keeps the courses that one of the filters selects, every
// course is kept when there are no filters.
func (s Syncer) selectCourses(courses []cms.Course) []cms.Course {
	filters := s.deps.Config.Courses
	if len(filters) == 0 {
		return courses
	}

	var selected []cms.Course
	used := make([]bool, len(filters))
	for _, c := range courses {
		match := false
		for i, f := range filters {
			if textutil.MatchCourse(c.Code, c.Name, f) {
				used[i] = true
				match = true
			}
		}
		if match {
			selected = append(selected, c)
		}
	}
	for i, f := range filters {
		if !used[i] {
			s.tel.ReportWarning(report_syncer_courses, fmt.Errorf("no course matches '%s'", f))
		}
	}
	return selected
}

// Plan authenticates, loads the courses and their pages and picks the files
// that are allowed and not on disk yet.
func (s Syncer) Plan(ctx context.Context) (Plan, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("authenticate: %w", err)
	}

	courses, err := s.courses(ctx, client)
	if err != nil {
		return Plan{}, fmt.Errorf("load courses: %w", err)
	}
	courses = s.selectCourses(courses)

	plan := Plan{Client: client}
	seen := map[string]bool{}
	cfg := s.deps.Config

	for _, course := range courses {
		course, err := client.CoursePage(ctx, course)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Plan{}, err
		}
		if err != nil {
			s.tel.ReportBroken(report_syncer_course_page, err, course.Code)
			continue
		}
		plan.Courses = append(plan.Courses, course)

		for _, file := range course.Files() {
			if file.Extension == "" {
				s.tel.ReportWarning(report_syncer_plan, fmt.Errorf("file has no extension"), course.Code, file.Url.String())
				plan.Skipped++
				continue
			}
			if !layout.Allowed(file.Extension, cfg.AllowedExtensions) {
				plan.Skipped++
				continue
			}

			path := layout.FilePath(cfg.DownloadsDir, course.Dir(), file.Week, file.Name, file.Extension)
			if seen[path] {
				s.tel.ReportWarning(report_syncer_plan, fmt.Errorf("more than one file maps to '%s'", path), file.Url.String())
				plan.Skipped++
				continue
			}
			seen[path] = true

			exists, err := osutil.Exists(path)
			if err != nil {
				return Plan{}, fmt.Errorf("stat '%s': %w", path, err)
			}
			if exists {
				plan.Skipped++
				continue
			}

			plan.Jobs = append(plan.Jobs, downloader.Job{
				File:     file,
				CourseId: course.Id,
				Path:     path,
			})
		}
	}

	return plan, nil
}

// Run does a full sync and records it in the index.
func (s Syncer) Run(ctx context.Context) (Summary, error) {
	plan, err := s.Plan(ctx)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Skipped: plan.Skipped}
	if s.opts.DryRun {
		summary.Pending = plan.Jobs
		return summary, nil
	}

	run, err := s.deps.Index.StartRun(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("start run: %w", err)
	}
	summary.RunId = run.Id

	var results []downloader.Result
	if len(plan.Jobs) == 0 {
		slog.Info("No new files found.")
	} else {
		d := downloader.New(plan.Client, downloader.Options{
			Concurrency: s.deps.Config.Concurrency,
			Progress:    s.deps.Progress,
		}, s.deps.Tel)
		results = d.Run(ctx, plan.Jobs)
	}

	byCourse := map[string]*CourseSummary{}
	for _, c := range plan.Courses {
		summary.Courses = append(summary.Courses, CourseSummary{Course: c})
	}
	for i := range summary.Courses {
		byCourse[summary.Courses[i].Course.Id] = &summary.Courses[i]
	}

	for _, r := range results {
		course := byCourse[r.Job.CourseId]
		switch {
		case r.Skipped:
			summary.Skipped++
		case r.Err != nil:
			summary.Failed++
			course.Failed = append(course.Failed, r)
		default:
			summary.Downloaded++
			course.Downloaded = append(course.Downloaded, r)
			s.record(ctx, run.Id, r)
		}
	}

	run.Downloaded = summary.Downloaded
	run.Skipped = summary.Skipped
	run.Failed = summary.Failed
	_, err = s.deps.Index.FinishRun(ctx, run)
	if err != nil {
		s.tel.ReportBroken(report_syncer_record, fmt.Errorf("finish run: %w", err), run.Id)
	}

	if summary.Downloaded > 0 && s.deps.Notifier != nil {
		err = s.deps.Notifier.Send(ctx, s.report(run, summary))
		if err != nil {
			s.tel.ReportBroken(report_syncer_notify, err)
		}
	}

	return summary, nil
}

func (s Syncer) record(ctx context.Context, runId string, r downloader.Result) {
	err := s.deps.Index.RecordFile(ctx, index.FileRecord{
		Path:     r.Job.Path,
		Url:      r.Job.File.Url.String(),
		CourseId: r.Job.CourseId,
		Week:     r.Job.File.Week,
		Size:     r.Size,
		Sha256:   r.Sha256,
		RunId:    runId,
	})
	if err != nil {
		s.tel.ReportBroken(report_syncer_record, err, r.Job.Path)
	}

	if s.deps.Mirror == nil {
		return
	}
	cfg := s.deps.Config
	key, err := mirror.Key(cfg.DownloadsDir, r.Job.Path, cfg.Mirror.Prefix)
	if err != nil {
		s.tel.ReportBroken(report_syncer_mirror, err, r.Job.Path)
		return
	}
	err = s.deps.Mirror.Put(ctx, r.Job.Path, key)
	if err != nil {
		s.tel.ReportBroken(report_syncer_mirror, err, r.Job.Path)
	}
}

func (s Syncer) report(run index.Run, summary Summary) notify.Report {
	report := notify.Report{
		StartedAt: run.StartedAt,
		Failed:    summary.Failed,
	}
	for _, c := range summary.Courses {
		entry := notify.CourseFiles{Course: c.Course.DisplayName()}
		for _, r := range c.Downloaded {
			entry.Files = append(entry.Files, r.Job.File.Week+"/"+filepath.Base(r.Job.Path))
		}
		report.Courses = append(report.Courses, entry)
	}
	return report
}
