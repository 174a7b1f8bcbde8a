// Package downloader fetches course files onto disk.
package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"cms-downloader/internal/cms"
	"cms-downloader/internal/components/assert"
	"cms-downloader/internal/components/telemetry"
	"cms-downloader/lib/osutil"

	"github.com/jedib0t/go-pretty/v6/progress"
	random "github.com/mazen160/go-random"
	"github.com/remeh/sizedwaitgroup"
	"github.com/shirou/gopsutil/v4/disk"
)

const (
	report_downloader_download = "downloader.download"
	report_downloader_count    = "downloader.downloaded"
)

var ErrInsufficientSpace = errors.New("insufficient disk space")

// Source is where files are downloaded from, usually a *cms.Client.
type Source interface {
	Download(ctx context.Context, link *url.URL) (cms.Download, error)
}

type Job struct {
	File     cms.File
	CourseId string
	Path     string
}

type Result struct {
	Job    Job
	Size   int64
	Sha256 string
	Err    error
	// Skipped is set when the path already existed when the job started.
	Skipped bool
}

type Options struct {
	Concurrency int
	// Progress is where the progress display is rendered, no progress is
	// shown when it is nil.
	Progress io.Writer
}

type Downloader struct {
	source      Source
	concurrency int
	progress    io.Writer
	tel         telemetry.API

	// freeSpace returns the free bytes on the filesystem of `dir`.
	freeSpace func(ctx context.Context, dir string) (uint64, error)
}

func New(source Source, opts Options, tel telemetry.API) Downloader {
	assert.NotNil(source)
	assert.NotNil(tel)
	assert.Positive(opts.Concurrency)

	return Downloader{
		source:      source,
		concurrency: opts.Concurrency,
		progress:    opts.Progress,
		tel:         telemetry.NewScopedAPI("downloader", tel),
		freeSpace:   diskFreeSpace,
	}
}

func diskFreeSpace(ctx context.Context, dir string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, dir)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

func (d Downloader) newProgressWriter() progress.Writer {
	pw := progress.NewWriter()
	pw.SetAutoStop(false)
	pw.SetTrackerLength(25)
	pw.SetOutputWriter(d.progress)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.SetStyle(progress.StyleDefault)
	pw.SetTrackerPosition(progress.PositionRight)
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Value = true
	return pw
}

// Run downloads every job with at most `concurrency` running at once, the
// results are in the same order as the jobs. A failed job does not stop the
// others.
func (d Downloader) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))

	var pw progress.Writer
	if d.progress != nil {
		pw = d.newProgressWriter()
		pw.SetNumTrackersExpected(len(jobs))
		go pw.Render()
		defer func() {
			pw.Stop()
			for pw.IsRenderInProgress() {
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}

	swg := sizedwaitgroup.New(d.concurrency)
	for i, job := range jobs {
		err := ctx.Err()
		if err == nil {
			err = swg.AddWithContext(ctx)
		}
		if err != nil {
			results[i] = Result{Job: job, Err: err}
			continue
		}

		tracker := &progress.Tracker{
			Message: filepath.Base(job.Path),
			Units:   progress.UnitsBytes,
		}
		if pw != nil {
			pw.AppendTracker(tracker)
		}

		go func() {
			defer swg.Done()
			results[i] = d.download(ctx, job, tracker)
			if results[i].Err != nil {
				tracker.MarkAsErrored()
				return
			}
			tracker.MarkAsDone()
		}()
	}
	swg.Wait()

	var downloaded int64
	for _, r := range results {
		if r.Err == nil && !r.Skipped {
			downloaded++
		}
	}
	d.tel.ReportCount(report_downloader_count, downloaded)

	return results
}

type trackerWriter struct {
	tracker *progress.Tracker
}

func (w trackerWriter) Write(p []byte) (int, error) {
	w.tracker.Increment(int64(len(p)))
	return len(p), nil
}

func (d Downloader) download(ctx context.Context, job Job, tracker *progress.Tracker) Result {
	result := Result{Job: job}
	fail := func(err error) Result {
		d.tel.ReportWarning(report_downloader_download, err, job.Path)
		result.Err = err
		return result
	}

	exists, err := osutil.Exists(job.Path)
	if err != nil {
		return fail(fmt.Errorf("stat: %w", err))
	}
	if exists {
		result.Skipped = true
		return result
	}

	dir := filepath.Dir(job.Path)
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return fail(fmt.Errorf("create directory: %w", err))
	}

	dl, err := d.source.Download(ctx, job.File.Url)
	if err != nil {
		return fail(err)
	}
	defer dl.Body.Close()

	if dl.ContentLength > 0 {
		tracker.UpdateTotal(dl.ContentLength)

		free, err := d.freeSpace(ctx, dir)
		if err != nil {
			d.tel.ReportWarning(report_downloader_download, fmt.Errorf("check free space: %w", err), dir)
		} else if free < uint64(dl.ContentLength) {
			return fail(fmt.Errorf(
				"%w: need %d bytes, have %d", ErrInsufficientSpace, dl.ContentLength, free,
			))
		}
	}

	size, sum, err := writeAtomic(job.Path, dl.Body, trackerWriter{tracker: tracker})
	if err != nil {
		return fail(err)
	}

	result.Size = size
	result.Sha256 = sum
	return result
}

// writeAtomic streams `body` into a temporary file next to `path` and only
// renames it to `path` once it is complete and synced.
func writeAtomic(path string, body io.Reader, observer io.Writer) (size int64, sum string, err error) {
	suffix, err := random.String(8)
	if err != nil {
		return 0, "", fmt.Errorf("temp name: %w", err)
	}
	tmp := fmt.Sprintf("%s.part-%s", path, suffix)

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return 0, "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	hash := sha256.New()
	size, err = io.Copy(io.MultiWriter(f, hash, observer), body)
	if err != nil {
		return 0, "", fmt.Errorf("write: %w", err)
	}
	err = f.Sync()
	if err != nil {
		return 0, "", fmt.Errorf("sync: %w", err)
	}
	err = f.Close()
	if err != nil {
		return 0, "", fmt.Errorf("close: %w", err)
	}
	err = os.Rename(tmp, path)
	if err != nil {
		os.Remove(tmp)
		return 0, "", fmt.Errorf("rename: %w", err)
	}

	return size, hex.EncodeToString(hash.Sum(nil)), nil
}
