package cli

import (
	"fmt"
	"os"

	"github.com/guiyumin/vfeed/internal/cache"
	"github.com/guiyumin/vfeed/internal/config"
	"github.com/guiyumin/vfeed/internal/extractor"
	"github.com/guiyumin/vfeed/internal/logging"
	"github.com/guiyumin/vfeed/internal/refresh"
	"github.com/guiyumin/vfeed/internal/twitter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var osFs afero.Fs = afero.NewOsFs()

// app is the wiring shared by serve and fetch
type app struct {
	cfg   *config.Config
	log   *logrus.Logger
	store *cache.Store
	ctrl  *refresh.Controller
}

func newLogger(cfg *config.Config) *logrus.Logger {
	return logging.New(logging.Options{
		Level: cfg.Log.Level,
		JSON:  cfg.Log.JSON,
		Out:   os.Stderr,
	})
}

func newApp(cfg *config.Config, log *logrus.Logger, observer refresh.Observer) (*app, error) {
	httpClient, err := twitter.NewHTTPClient(cfg.Proxy, cfg.FetchTimeoutDuration())
	if err != nil {
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}
	client := twitter.NewClient(httpClient, cfg.Twitter.Endpoint, cfg.Twitter.UserAgent)

	store := cache.New(osFs, cfg.Cache.File)
	if snap, ok := store.Load().Get(); ok {
		log.WithFields(logrus.Fields{
			"component": "cache",
			"path":      store.Path(),
			"records":   len(snap.Records),
			"fetchedAt": snap.FetchedAt,
		}).Info("loaded snapshot from disk")
	}

	ctrl := refresh.New(store, client, extractor.Default(), refresh.Options{
		Query:            cfg.Query(),
		TTL:              cfg.TTL(),
		FetchTimeout:     cfg.FetchTimeoutDuration(),
		OverwriteOnEmpty: cfg.Cache.OverwriteOnEmpty,
		Logger:           log,
		Observer:         observer,
	})

	return &app{
		cfg:   cfg,
		log:   log,
		store: store,
		ctrl:  ctrl,
	}, nil
}
