// Package index records the course list, sync runs and downloaded files.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cms-downloader/internal/cms"
	"cms-downloader/internal/components/assert"
	"cms-downloader/internal/components/chrono"
	"cms-downloader/internal/index/db"
	configlibsql "cms-downloader/lib/configutil/libsql"

	"github.com/google/uuid"
)

type Store struct {
	conn   *sql.DB
	qry    *db.Queries
	makeTx db.MakeTx
	clock  chrono.API
}

// Open opens the index database and applies the schema.
func Open(ctx context.Context, config configlibsql.Struct, clock chrono.API) (*Store, error) {
	assert.NotNil(clock)

	conn, err := config.OpenDB()
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	for _, stmt := range strings.Split(db.Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err = conn.ExecContext(ctx, stmt)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("apply index schema: %w", err)
		}
	}

	return &Store{
		conn:   conn,
		qry:    db.New(conn),
		makeTx: db.NewMakeTx(conn),
		clock:  clock,
	}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// CachedCourses returns the stored course list, `ok` is false when there is
// none or when it was fetched longer than `maxAge` ago.
func (s *Store) CachedCourses(ctx context.Context, maxAge time.Duration) (courses []cms.Course, ok bool, err error) {
	rows, err := s.qry.GetCourses(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("GetCourses: %w", err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	now := s.clock.Now()
	courses = make([]cms.Course, 0, len(rows))
	for _, row := range rows {
		if maxAge > 0 && now.Sub(time.Unix(row.FetchedAt, 0)) > maxAge {
			return nil, false, nil
		}
		link, err := url.Parse(row.Url)
		if err != nil {
			return nil, false, fmt.Errorf("parse course url '%s': %w", row.Url, err)
		}
		courses = append(courses, cms.Course{
			Id:   row.ID,
			Text: row.Text,
			Code: row.Code,
			Name: row.Name,
			Url:  link,
		})
	}
	return courses, true, nil
}

// ReplaceCourses swaps the stored course list for `courses` in one
// transaction.
func (s *Store) ReplaceCourses(ctx context.Context, courses []cms.Course) error {
	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		return fmt.Errorf("make tx: %w", err)
	}
	defer discard()

	err = tx.DeleteAllCourses(ctx)
	if err != nil {
		return fmt.Errorf("DeleteAllCourses: %w", err)
	}

	fetchedAt := s.clock.Now().Unix()
	for i, c := range courses {
		err = tx.UpsertCourse(ctx, db.UpsertCourseParams{
			ID:        c.Id,
			Position:  int64(i),
			Text:      c.Text,
			Code:      c.Code,
			Name:      c.Name,
			Url:       c.Url.String(),
			FetchedAt: fetchedAt,
		})
		if err != nil {
			return fmt.Errorf("UpsertCourse '%s': %w", c.Code, err)
		}
	}

	return commit()
}

type Run struct {
	Id         string
	StartedAt  time.Time
	FinishedAt time.Time
	Downloaded int
	Skipped    int
	Failed     int
}

func (s *Store) StartRun(ctx context.Context) (Run, error) {
	run := Run{
		Id:        uuid.NewString(),
		StartedAt: s.clock.Now(),
	}
	err := s.qry.CreateRun(ctx, db.CreateRunParams{
		ID:        run.Id,
		StartedAt: run.StartedAt.Unix(),
	})
	if err != nil {
		return Run{}, fmt.Errorf("CreateRun: %w", err)
	}
	return run, nil
}

// FinishRun stamps the finish time and stores the counts of `run`.
func (s *Store) FinishRun(ctx context.Context, run Run) (Run, error) {
	run.FinishedAt = s.clock.Now()
	err := s.qry.FinishRun(ctx, db.FinishRunParams{
		ID:         run.Id,
		FinishedAt: sql.NullInt64{Int64: run.FinishedAt.Unix(), Valid: true},
		Downloaded: int64(run.Downloaded),
		Skipped:    int64(run.Skipped),
		Failed:     int64(run.Failed),
	})
	if err != nil {
		return run, fmt.Errorf("FinishRun: %w", err)
	}
	return run, nil
}

func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.qry.GetRuns(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("GetRuns: %w", err)
	}
	runs := make([]Run, len(rows))
	for i, row := range rows {
		runs[i] = Run{
			Id:         row.ID,
			StartedAt:  time.Unix(row.StartedAt, 0).In(s.clock.Location()),
			Downloaded: int(row.Downloaded),
			Skipped:    int(row.Skipped),
			Failed:     int(row.Failed),
		}
		if row.FinishedAt.Valid {
			runs[i].FinishedAt = time.Unix(row.FinishedAt.Int64, 0).In(s.clock.Location())
		}
	}
	return runs, nil
}

type FileRecord struct {
	Path         string
	Url          string
	CourseId     string
	Week         string
	Size         int64
	Sha256       string
	RunId        string
	DownloadedAt time.Time
}

func (s *Store) RecordFile(ctx context.Context, record FileRecord) error {
	if record.DownloadedAt.IsZero() {
		record.DownloadedAt = s.clock.Now()
	}
	err := s.qry.AddFile(ctx, db.AddFileParams{
		Path:         record.Path,
		Url:          record.Url,
		CourseID:     record.CourseId,
		Week:         record.Week,
		Size:         record.Size,
		Sha256:       record.Sha256,
		RunID:        record.RunId,
		DownloadedAt: record.DownloadedAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("AddFile '%s': %w", record.Path, err)
	}
	return nil
}

// Files lists downloaded files, only those of `courseId` when it is not
// empty.
func (s *Store) Files(ctx context.Context, courseId string) ([]FileRecord, error) {
	var rows []db.File
	var err error
	if courseId == "" {
		rows, err = s.qry.GetFiles(ctx)
	} else {
		rows, err = s.qry.GetFilesByCourse(ctx, courseId)
	}
	if err != nil {
		return nil, fmt.Errorf("GetFiles: %w", err)
	}

	records := make([]FileRecord, len(rows))
	for i, row := range rows {
		records[i] = FileRecord{
			Path:         row.Path,
			Url:          row.Url,
			CourseId:     row.CourseID,
			Week:         row.Week,
			Size:         row.Size,
			Sha256:       row.Sha256,
			RunId:        row.RunID,
			DownloadedAt: time.Unix(row.DownloadedAt, 0).In(s.clock.Location()),
		}
	}
	return records, nil
}
