package index

import (
	"context"
	"net/url"
	"testing"
	"time"

	"cms-downloader/internal/cms"
	"cms-downloader/internal/components/chrono"
	configlibsql "cms-downloader/lib/configutil/libsql"

	"github.com/stretchr/testify/require"
)

func openTestStore(t testing.TB, clock chrono.API) *Store {
	t.Helper()
	store, err := Open(context.Background(), configlibsql.Struct{File: ":memory:"}, clock)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func course(t testing.TB, id, code, name string) cms.Course {
	link, err := url.Parse("https://cms.guc.edu.eg/apps/student/CourseViewStn?id=" + id + "&sid=59")
	if err != nil {
		t.Fatal(err)
	}
	return cms.Course{Id: id, Text: code + "- " + name, Code: code, Name: name, Url: link}
}

func TestCourses(t *testing.T) {
	clock := &chrono.FixedImpl{Time: time.Date(2024, 2, 11, 12, 0, 0, 0, time.UTC)}
	store := openTestStore(t, clock)
	ctx := context.Background()

	_, ok, err := store.CachedCourses(ctx, time.Hour)
	require.NoError(t, err)
	require.False(t, ok)

	err = store.ReplaceCourses(ctx, []cms.Course{
		course(t, "1234", "CSEN 401", "Computer Programming Lab"),
		course(t, "99", "MATH 203", "Mathematics I"),
	})
	require.NoError(t, err)

	courses, ok, err := store.CachedCourses(ctx, time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, courses, 2)
	require.Equal(t, "CSEN 401", courses[0].Code)
	require.Equal(t, "MATH 203", courses[1].Code)
	require.Equal(t, "https://cms.guc.edu.eg/apps/student/CourseViewStn?id=99&sid=59", courses[1].Url.String())

	err = store.ReplaceCourses(ctx, []cms.Course{
		course(t, "99", "MATH 203", "Mathematics I"),
	})
	require.NoError(t, err)
	courses, ok, err = store.CachedCourses(ctx, time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, courses, 1)

	clock.Time = clock.Time.Add(2 * time.Hour)
	_, ok, err = store.CachedCourses(ctx, time.Hour)
	require.NoError(t, err)
	require.False(t, ok)

	// a max age of 0 never expires
	_, ok, err = store.CachedCourses(ctx, 0)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRunsAndFiles(t *testing.T) {
	clock := &chrono.FixedImpl{Time: time.Date(2024, 2, 11, 12, 0, 0, 0, time.UTC)}
	store := openTestStore(t, clock)
	ctx := context.Background()

	run, err := store.StartRun(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, run.Id)

	records := []FileRecord{
		{Path: "downloads/[CSEN 401] Lab/W 02-11/Lecture 1.pdf", Url: "https://cms.guc.edu.eg/a.pdf", CourseId: "1234", Week: "W 02-11", Size: 10, Sha256: "aa", RunId: run.Id},
		{Path: "downloads/[MATH 203] Math/W 02-11/Sheet 1.pdf", Url: "https://cms.guc.edu.eg/b.pdf", CourseId: "99", Week: "W 02-11", Size: 20, Sha256: "bb", RunId: run.Id},
	}
	for _, r := range records {
		require.NoError(t, store.RecordFile(ctx, r))
	}
	// recording the same path again replaces it
	records[0].Size = 11
	require.NoError(t, store.RecordFile(ctx, records[0]))

	files, err := store.Files(ctx, "")
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, int64(11), files[0].Size)
	require.Equal(t, clock.Time.Unix(), files[0].DownloadedAt.Unix())

	files, err = store.Files(ctx, "99")
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "bb", files[0].Sha256)

	clock.Time = clock.Time.Add(time.Minute)
	run.Downloaded = 2
	run.Failed = 1
	run, err = store.FinishRun(ctx, run)
	require.NoError(t, err)

	runs, err := store.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, run.Id, runs[0].Id)
	require.Equal(t, 2, runs[0].Downloaded)
	require.Equal(t, 1, runs[0].Failed)
	require.Equal(t, time.Minute, runs[0].FinishedAt.Sub(runs[0].StartedAt))
}
