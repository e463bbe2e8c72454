package schedule

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Job is a named unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// CronScheduler drives jobs on minute-resolution cron expressions. A job
// whose previous run is still in flight skips the tick instead of stacking.
type CronScheduler struct {
	cron *cron.Cron
	base context.Context
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &CronScheduler{
		cron: cron.New(cron.WithParser(parser)),
		base: context.Background(),
	}
}

func (s *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	var inFlight atomic.Bool
	_, err := s.cron.AddFunc(spec, func() {
		logger := logutil.GetLogger(s.base).With(zap.String("job", name))
		if !inFlight.CompareAndSwap(false, true) {
			logger.Info("previous run still active, skipping tick")
			return
		}
		defer inFlight.Store(false)

		start := time.Now()
		if err := job.Run(s.base); err != nil {
			logger.Error("job run failed", zap.Error(err), zap.Duration("cost", time.Since(start)))
			return
		}
		logger.Info("job run done", zap.Duration("cost", time.Since(start)))
	})
	if err != nil {
		return err
	}
	logutil.GetLogger(s.base).Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

func (s *CronScheduler) Start(ctx context.Context) {
	if ctx != nil {
		s.base = ctx
	}
	s.cron.Start()
}

// Stop waits for in-flight runs to drain.
func (s *CronScheduler) Stop() {
	<-s.cron.Stop().Done()
}
