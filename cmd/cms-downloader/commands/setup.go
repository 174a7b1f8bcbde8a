package commands

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"

	"cms-downloader/internal/cms"
	"cms-downloader/internal/components/chrono"
	"cms-downloader/internal/components/telemetry"
	"cms-downloader/internal/config"
	"cms-downloader/internal/credentials"
	"cms-downloader/internal/index"
	"cms-downloader/internal/mirror"
	"cms-downloader/internal/notify"
	"cms-downloader/internal/syncer"
	"cms-downloader/lib/restyutil"
)

// app holds everything a command needs, Close releases it.
type app struct {
	config config.Config
	clock  chrono.API
	tel    telemetry.API
	index  *index.Store
	cache  *cms.PageCache
	deps   syncer.Deps
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{
		config: cfg,
		clock:  chrono.NewStandardImplIn(cfg.Location()),
		tel:    telemetry.SlogAPI{},
	}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	a.index, err = index.Open(ctx, cfg.Index, a.clock)
	if err != nil {
		return nil, err
	}

	host, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("parse host: %w", err)
	}
	if !cfg.Cache.Disabled {
		a.cache, err = cms.OpenPageCache(cfg.Cache.Dir, host, a.clock)
		if err != nil {
			return nil, err
		}
	}

	var dump restyutil.Output
	if *dumpHttp != "" {
		out, err := restyutil.NewFilesystemOutput(*dumpHttp)
		if err != nil {
			return nil, fmt.Errorf("create http dump dir: %w", err)
		}
		dump = out
	}

	a.deps = syncer.Deps{
		Config: cfg,
		NewCMS: func(creds credentials.Credentials) (syncer.CMS, error) {
			client, err := cms.NewClient(cms.Options{
				Host:               cfg.Host,
				Username:           creds.Username,
				Password:           creds.Password,
				InsecureSkipVerify: cfg.SkipVerify(),
				Timeout:            cfg.Timeout(),
				Retries:            cfg.Retries,
				RequestsPerSecond:  cfg.RequestsPerSecond,
				Cache:              a.cache,
				CacheLifetime:      cfg.Cache.CoursePageLifetime(),
				Dump:               dump,
			}, a.tel)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		Store:    credentials.Store{Path: cfg.CredentialsFile},
		Prompter: credentials.NewTerminalPrompter(),
		Index:    a.index,
		Progress: os.Stderr,
		Tel:      a.tel,
	}

	if cfg.Mirror.Enabled() {
		m, err := mirror.NewMinioMirror(ctx, cfg.Mirror)
		if err != nil {
			return nil, err
		}
		a.deps.Mirror = m
	}
	if cfg.Notify.Enabled() {
		a.deps.Notifier = notify.NewNotifier(cfg.Notify)
	}

	ok = true
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.index != nil {
		errs = append(errs, a.index.Close())
	}
	return errors.Join(errs...)
}
