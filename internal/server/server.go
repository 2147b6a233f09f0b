package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/guiyumin/vfeed/internal/logging"
	"github.com/guiyumin/vfeed/internal/refresh"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Options configures the HTTP server
type Options struct {
	Addr      string
	StaticDir string // served at / when set
	Debug     bool

	Logger   logrus.FieldLogger
	Gatherer prometheus.Gatherer // defaults to the global registry
}

// Server exposes the cached records over HTTP
type Server struct {
	ctrl       *refresh.Controller
	engine     *gin.Engine
	httpServer *http.Server
	log        logrus.FieldLogger
}

// New creates a server backed by ctrl
func New(ctrl *refresh.Controller, opts Options) *Server {
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		ctrl:   ctrl,
		engine: gin.New(),
		log:    logging.Component(opts.Logger, "server"),
	}
	s.engine.Use(gin.Recovery())
	s.engine.Use(requestLogger(s.log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	s.engine.Use(cors.New(corsConfig))

	s.setupRoutes(opts)

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes(opts Options) {
	s.engine.GET("/api/videos", s.handleVideos)
	s.engine.GET("/videos.json", s.handleVideosFile)
	s.engine.GET("/_health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))

	if opts.StaticDir != "" {
		// NoRoute keeps the API routes above from conflicting with a catch-all.
		fileServer := http.FileServer(http.Dir(opts.StaticDir))
		s.engine.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
				c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
				return
			}
			fileServer.ServeHTTP(c.Writer, c.Request)
		})
	}
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", ln.Addr().String()).Info("listening")
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleVideos(c *gin.Context) {
	force, _ := strconv.ParseBool(c.Query("refresh"))
	c.JSON(http.StatusOK, s.ctrl.Records(c.Request.Context(), force))
}

func (s *Server) handleVideosFile(c *gin.Context) {
	store := s.ctrl.Store()
	if !store.Exists() {
		// Refreshes only when the snapshot is stale, same as /api/videos.
		s.ctrl.Records(c.Request.Context(), false)
	}

	raw, ok, err := store.ReadRaw()
	if err != nil {
		s.log.WithError(err).Error("failed to read snapshot file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read cache"})
		return
	}
	if ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
		return
	}

	// No file on disk, but an in-memory snapshot exists (persist failed).
	snap := store.Current()
	if snap.FetchedAt.IsZero() {
		c.JSON(http.StatusNotFound, gin.H{"error": "No cache available"})
		return
	}
	data, err := json.MarshalIndent(snap.Records, "", "  ")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode cache"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

type healthResponse struct {
	OK          bool       `json:"ok"`
	CachedCount int        `json:"cachedCount"`
	FetchedAt   *time.Time `json:"fetchedAt"`
}

func (s *Server) handleHealth(c *gin.Context) {
	snap := s.ctrl.Store().Current()
	resp := healthResponse{OK: true, CachedCount: len(snap.Records)}
	if !snap.FetchedAt.IsZero() {
		t := snap.FetchedAt.UTC()
		resp.FetchedAt = &t
	}
	c.JSON(http.StatusOK, resp)
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}
