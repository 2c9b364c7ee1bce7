package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
)

type Logger interface {
	Errorf(template string, args ...interface{})
}

type Scheduler struct {
	cron   *cron.Cron
	logger Logger
}

func New(logger Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		logger: logger,
	}
}

func (s *Scheduler) AddJob(name, spec string, job func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := job(context.Background()); err != nil && s.logger != nil {
			s.logger.Errorf("scheduled job %s failed: %v", name, err)
		}
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
