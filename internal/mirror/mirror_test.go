package mirror

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"cms-downloader/internal/config"

	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	root := filepath.Join("downloads")
	local := filepath.Join("downloads", "[CSEN 401] Lab", "W 02-11", "Lecture 1.pdf")

	key, err := Key(root, local, "/semester-6/")
	require.NoError(t, err)
	require.Equal(t, "semester-6/[CSEN 401] Lab/W 02-11/Lecture 1.pdf", key)

	key, err = Key(root, local, "")
	require.NoError(t, err)
	require.Equal(t, "[CSEN 401] Lab/W 02-11/Lecture 1.pdf", key)

	_, err = Key(root, filepath.Join("elsewhere", "file.pdf"), "")
	require.Error(t, err)
}

// decodeChunked undoes the aws-chunked encoding used by streaming
// signatures, other bodies are returned as is.
func decodeChunked(r *http.Request) []byte {
	body, _ := io.ReadAll(r.Body)
	if !strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING") {
		return body
	}

	var out bytes.Buffer
	reader := bufio.NewReader(bytes.NewReader(body))
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return out.Bytes()
		}
		sizeHex, _, _ := strings.Cut(strings.TrimSpace(line), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil || size == 0 {
			return out.Bytes()
		}
		io.CopyN(&out, reader, size)
		reader.ReadString('\n')
	}
}

type fakeS3 struct {
	mutex   sync.Mutex
	bucket  bool
	objects map[string][]byte
	types   map[string]string
}

func (s *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// bucket requests may carry a trailing slash
	isBucket := strings.TrimSuffix(r.URL.Path, "/") == "/course-files"
	switch {
	case r.Method == http.MethodHead && isBucket:
		if !s.bucket {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && isBucket:
		s.bucket = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		s.objects[r.URL.Path] = decodeChunked(r)
		s.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func TestMinioMirror(t *testing.T) {
	s3 := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	server := httptest.NewServer(s3)
	defer server.Close()
	endpoint, _ := url.Parse(server.URL)

	ctx := context.Background()
	m, err := NewMinioMirror(ctx, config.Mirror{
		Endpoint:  endpoint.Host,
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "course-files",
	})
	require.NoError(t, err)
	require.True(t, s3.bucket)

	local := filepath.Join(t.TempDir(), "lecture1.pdf")
	require.NoError(t, os.WriteFile(local, []byte("%PDF lecture 1"), 0644))

	err = m.Put(ctx, local, "csen401/lecture1.pdf")
	require.NoError(t, err)
	require.Equal(t, "%PDF lecture 1", string(s3.objects["/course-files/csen401/lecture1.pdf"]))
	require.Equal(t, "application/pdf", s3.types["/course-files/csen401/lecture1.pdf"])
}
