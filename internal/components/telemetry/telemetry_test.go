package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	inner := NewTestAPI(t)
	scoped := NewScopedAPI("cms_client", inner)

	scoped.ReportBroken("client.authenticate", "401")
	scoped.ReportWarning("client.courses")
	scoped.ReportDebug("fetching page")
	scoped.ReportCount("files", 3)

	broken := inner.Reports("broken")
	require.Len(t, broken, 1)
	require.Equal(t, "cms_client: client.authenticate", broken[0].Id)
	require.Equal(t, []any{"401"}, broken[0].Params)

	require.Equal(t, "cms_client: client.courses", inner.Reports("warning")[0].Id)
	require.Equal(t, "cms_client: fetching page", inner.Reports("debug")[0].Id)
	require.Equal(t, []any{int64(3)}, inner.Reports("count")[0].Params)
}
