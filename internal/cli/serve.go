package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/guiyumin/vfeed/internal/refresh"
	"github.com/guiyumin/vfeed/internal/scheduler"
	"github.com/guiyumin/vfeed/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	servePort  int
	serveDebug bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the cached feed over HTTP",
	Long: `Serve the cached media feed.

Routes:
  GET /api/videos           records, refreshed when stale (?refresh=true forces)
  GET /videos.json          the snapshot file as written to disk
  GET /_health              snapshot size and age
  GET /metrics              Prometheus metrics

Examples:
  vfeed serve
  vfeed serve --port 8080
  PORT=8080 X_USER_ID=12345 X_COOKIE='auth_token=...' vfeed serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cmd)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides config)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "gin debug mode")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg := loadConfig(cmd)
	if servePort > 0 {
		cfg.Port = servePort
	}

	log := newLogger(cfg)
	observer, err := refresh.NewPrometheusObserver("vfeed", nil)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, log, observer)
	if err != nil {
		return err
	}

	q := cfg.Query()
	if q.SubjectID == "" || q.Credentials.Empty() {
		log.Warn("twitter user id or credentials not set; serving the existing snapshot only")
	}

	sched := scheduler.New(a.ctrl, cfg.RefreshEvery(), log)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	srv := server.New(a.ctrl, server.Options{
		Addr:      cfg.Addr(),
		StaticDir: cfg.StaticDir,
		Debug:     serveDebug,
		Logger:    log,
	})

	log.WithFields(logrus.Fields{
		"port":     cfg.Port,
		"snapshot": a.store.Path(),
		"ttl":      cfg.TTL().String(),
	}).Info("vfeed starting")
	return srv.Run(ctx)
}
