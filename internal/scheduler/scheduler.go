package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/guiyumin/vfeed/internal/logging"
	"github.com/guiyumin/vfeed/internal/refresh"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Refresher is the refresh operation the scheduler drives
type Refresher interface {
	Refresh(ctx context.Context) (refresh.Outcome, error)
}

// Scheduler refreshes the cache on a fixed interval. A run that is still
// going when the next one is due causes that tick to be skipped.
type Scheduler struct {
	target Refresher
	every  time.Duration
	log    logrus.FieldLogger

	cron *cron.Cron
	job  cron.Job
	ctx  context.Context

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a scheduler. An interval of zero or less disables it.
func New(target Refresher, every time.Duration, logger logrus.FieldLogger) *Scheduler {
	log := logging.Component(logger, "scheduler")
	cl := cronLogger{log}
	s := &Scheduler{
		target: target,
		every:  every,
		log:    log,
		cron:   cron.New(cron.WithLogger(cl)),
		ctx:    context.Background(),
	}
	s.job = cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(s.run))
	return s
}

// Enabled reports whether a positive interval was configured
func (s *Scheduler) Enabled() bool {
	return s.every > 0
}

// Start runs one refresh immediately, then one every interval until ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.Enabled() {
		s.log.Info("background refresh disabled")
		return nil
	}
	s.ctx = ctx

	spec := fmt.Sprintf("@every %s", s.every)
	if _, err := s.cron.AddJob(spec, s.job); err != nil {
		return fmt.Errorf("invalid refresh interval %s: %w", s.every, err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.job.Run()
	}()

	s.cron.Start()
	s.log.WithField("every", s.every.String()).Info("background refresh started")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop stops scheduling and waits for a running refresh to finish. Safe to
// call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		s.wg.Wait()
		s.log.Debug("background refresh stopped")
	})
}

func (s *Scheduler) run() {
	out, err := s.target.Refresh(s.ctx)
	entry := s.log.WithFields(logrus.Fields{
		"kind":    out.Kind,
		"records": len(out.Records),
	})
	if err != nil {
		entry.WithError(err).Debug("scheduled refresh kept previous snapshot")
		return
	}
	entry.Debug("scheduled refresh done")
}

// cronLogger adapts logrus to cron.Logger
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(kv []any) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
