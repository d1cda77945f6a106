// Package scheduler runs the fetch cycle on a fixed interval.
package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type Scheduler struct {
	InitialDelay time.Duration
	Interval     time.Duration
	Log          logrus.FieldLogger
}

// Run calls fn once after InitialDelay and then every Interval until ctx is
// done. Calls never overlap: a tick that arrives while fn is running is dropped.
func (s *Scheduler) Run(ctx context.Context, fn func(context.Context)) {
	log := s.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	delay := time.NewTimer(s.InitialDelay)
	defer delay.Stop()
	select {
	case <-ctx.Done():
		return
	case <-delay.C:
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		log.Debug("starting fetch cycle")
		fn(ctx)

		select {
		case <-ctx.Done():
			log.Debug("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}
