package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"cms-downloader/cmd/cms-downloader/commands"
	"cms-downloader/internal/components/telemetry"
	"cms-downloader/lib/osutil"
)

func main() {
	ctx, cancel := osutil.SignalContext(context.Background())

	otel, err := telemetry.SetupFromEnv(ctx, "cms-downloader")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to setup telemetry", "err", err)
	}

	err = commands.ExecuteContext(ctx)
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if shutdownErr := otel.Shutdown(shutdownCtx); shutdownErr != nil {
		slog.Warn("failed to flush telemetry", "err", shutdownErr)
	}
	if err != nil {
		os.Exit(1)
	}
}
