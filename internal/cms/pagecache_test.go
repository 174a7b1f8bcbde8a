package cms

import (
	"context"
	"testing"
	"time"

	"cms-downloader/internal/components/chrono"

	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	cache := &PageCache{host: testHost}

	testCases := []struct {
		clientId string
		endpoint string
		expect   string
	}{
		{clientId: "student", endpoint: "/", expect: "student:https://cms.guc.edu.eg/"},
		{
			clientId: "student",
			endpoint: "/apps/student/CourseViewStn?sid=59&id=1234#top",
			expect:   "student:https://cms.guc.edu.eg/apps/student/CourseViewStn?id=1234&sid=59",
		},
		{
			clientId: "other",
			endpoint: "HTTPS://CMS.guc.edu.eg:443/apps/student/CourseViewStn?id=1234&sid=59",
			expect:   "other:https://cms.guc.edu.eg/apps/student/CourseViewStn?id=1234&sid=59",
		},
	}

	for _, test := range testCases {
		res, err := cache.key(test.clientId, test.endpoint)
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, test.expect, res)
	}
}

func TestPageCache(t *testing.T) {
	clock := &chrono.FixedImpl{Time: time.Date(2024, 2, 11, 12, 0, 0, 0, time.UTC)}
	cache, err := OpenPageCache("", testHost, clock)
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	endpoint := "/apps/student/CourseViewStn?id=1234&sid=59"

	_, err = cache.Get(ctx, "student", endpoint)
	require.ErrorIs(t, err, errPageNotFound)

	err = cache.Set(ctx, "student", endpoint, []byte("course page"), 15*time.Minute)
	require.NoError(t, err)

	_, err = cache.Get(ctx, "someone-else", endpoint)
	require.ErrorIs(t, err, errPageNotFound)

	contents, err := cache.Get(ctx, "student", "/apps/student/CourseViewStn?sid=59&id=1234")
	require.NoError(t, err)
	require.Equal(t, "course page", string(contents))

	clock.Time = clock.Time.Add(16 * time.Minute)
	_, err = cache.Get(ctx, "student", endpoint)
	require.ErrorIs(t, err, errPageNotFound)

	// expired pages are deleted, not just hidden
	clock.Time = clock.Time.Add(-time.Hour)
	_, err = cache.Get(ctx, "student", endpoint)
	require.ErrorIs(t, err, errPageNotFound)
}
