package chrono

import (
	"cms-downloader/internal/components/telemetry"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStandardCron(t *testing.T) {
	cronner := NewStandardCron(NewStandardImpl(), telemetry.SlogAPI{})
	defer cronner.Stop()

	fired := make(chan struct{}, 1)
	err := cronner.Cron("@every 1s", func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	require.Nil(t, err)

	select {
	case <-fired:
	case <-time.After(time.Second * 3):
		t.Fatal("cron job did not fire")
	}

	err = cronner.Cron("not a schedule", func() {})
	require.NotNil(t, err)
}
