package downloader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"cms-downloader/internal/cms"
	"cms-downloader/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

type failingReader struct {
	remaining []byte
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.remaining) == 0 {
		return 0, errors.New("connection reset")
	}
	n := copy(p, r.remaining)
	r.remaining = r.remaining[n:]
	return n, nil
}

type fakeSource struct {
	files map[string][]byte
	// broken files fail while the body is being read
	broken   map[string]bool
	requests atomic.Int64
}

func (s *fakeSource) Download(ctx context.Context, link *url.URL) (cms.Download, error) {
	s.requests.Add(1)
	contents, ok := s.files[link.Path]
	if !ok {
		return cms.Download{}, cms.StatusError{Code: 404, Url: link.String()}
	}
	if s.broken[link.Path] {
		return cms.Download{
			Body:          io.NopCloser(&failingReader{remaining: contents[:len(contents)/2]}),
			ContentLength: int64(len(contents)),
		}, nil
	}
	return cms.Download{
		Body:          io.NopCloser(bytes.NewReader(contents)),
		ContentLength: int64(len(contents)),
	}, nil
}

func job(t testing.TB, root, path string) Job {
	link, err := url.Parse("https://cms.guc.edu.eg" + path)
	if err != nil {
		t.Fatal(err)
	}
	return Job{
		File:     cms.File{Url: link, Name: filepath.Base(path)},
		CourseId: "1234",
		Path:     filepath.Join(root, "[CSEN 401] Lab", "W 02-11", filepath.Base(path)),
	}
}

func sum(contents []byte) string {
	hash := sha256.Sum256(contents)
	return hex.EncodeToString(hash[:])
}

func partFiles(t testing.TB, root string) []string {
	var parts []string
	err := filepath.WalkDir(root, func(path string, _ os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.Contains(filepath.Base(path), ".part-") {
			parts = append(parts, path)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return parts
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	source := &fakeSource{
		files: map[string][]byte{
			"/Uploads/lecture1.pdf": []byte("%PDF lecture 1"),
			"/Uploads/lecture2.pdf": []byte("%PDF lecture 2"),
			"/Uploads/existing.pdf": []byte("new contents"),
			"/Uploads/broken.pdf":   []byte("this download breaks halfway"),
		},
		broken: map[string]bool{"/Uploads/broken.pdf": true},
	}

	jobs := []Job{
		job(t, root, "/Uploads/lecture1.pdf"),
		job(t, root, "/Uploads/missing.pdf"),
		job(t, root, "/Uploads/lecture2.pdf"),
		job(t, root, "/Uploads/existing.pdf"),
		job(t, root, "/Uploads/broken.pdf"),
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(jobs[3].Path), 0777))
	require.NoError(t, os.WriteFile(jobs[3].Path, []byte("old contents"), 0644))

	tel := telemetry.NewTestAPI(t)
	d := New(source, Options{Concurrency: 2, Progress: io.Discard}, tel)
	results := d.Run(context.Background(), jobs)
	require.Len(t, results, len(jobs))

	for i, r := range results {
		require.Equal(t, jobs[i].Path, r.Job.Path)
	}

	require.NoError(t, results[0].Err)
	require.Equal(t, int64(14), results[0].Size)
	require.Equal(t, sum([]byte("%PDF lecture 1")), results[0].Sha256)
	contents, err := os.ReadFile(jobs[0].Path)
	require.NoError(t, err)
	require.Equal(t, "%PDF lecture 1", string(contents))

	var statusErr cms.StatusError
	require.True(t, errors.As(results[1].Err, &statusErr))
	require.Equal(t, 404, statusErr.Code)
	_, err = os.Stat(jobs[1].Path)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, results[2].Err)

	require.True(t, results[3].Skipped)
	contents, err = os.ReadFile(jobs[3].Path)
	require.NoError(t, err)
	require.Equal(t, "old contents", string(contents))

	require.Error(t, results[4].Err)
	_, err = os.Stat(jobs[4].Path)
	require.True(t, os.IsNotExist(err))

	require.Empty(t, partFiles(t, root))
	// the existing file is never requested
	require.Equal(t, int64(4), source.requests.Load())

	counts := tel.Reports("count")
	require.Len(t, counts, 1)
	require.Equal(t, []any{int64(2)}, counts[0].Params)
}

func TestInsufficientSpace(t *testing.T) {
	root := t.TempDir()
	source := &fakeSource{files: map[string][]byte{
		"/Uploads/big.zip": bytes.Repeat([]byte("x"), 1024),
	}}

	d := New(source, Options{Concurrency: 1}, telemetry.NewTestAPI(t))
	d.freeSpace = func(context.Context, string) (uint64, error) {
		return 100, nil
	}

	jobs := []Job{job(t, root, "/Uploads/big.zip")}
	results := d.Run(context.Background(), jobs)
	require.ErrorIs(t, results[0].Err, ErrInsufficientSpace)
	_, err := os.Stat(jobs[0].Path)
	require.True(t, os.IsNotExist(err))
}

func TestCancelled(t *testing.T) {
	root := t.TempDir()
	source := &fakeSource{files: map[string][]byte{
		"/Uploads/lecture1.pdf": []byte("%PDF lecture 1"),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := New(source, Options{Concurrency: 1}, telemetry.NewTestAPI(t))
	results := d.Run(ctx, []Job{job(t, root, "/Uploads/lecture1.pdf")})
	require.ErrorIs(t, results[0].Err, context.Canceled)
	require.Equal(t, int64(0), source.requests.Load())
}

func TestNewRequiresConcurrency(t *testing.T) {
	require.Panics(t, func() {
		New(&fakeSource{}, Options{Concurrency: 0}, telemetry.NewTestAPI(t))
	})
}
