package cronrunner

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"classroom-auction/room"
)

// Runner runs named periodic jobs. Specs accept the optional seconds field
// and descriptors such as "@every 1m".
type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
}

func New(logger *zap.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cron:    cron.New(cron.WithParser(cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Add schedules job under name. A panicking job is logged and the schedule
// keeps running.
func (r *Runner) Add(name, spec string, job func(context.Context)) (cron.EntryID, error) {
	id, err := r.cron.AddFunc(spec, func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("cron job panic", zap.String("job", name), zap.Any("panic", p))
			}
		}()
		if r.baseCtx.Err() != nil {
			return
		}
		job(r.baseCtx)
	})
	if err != nil {
		return 0, errors.Wrapf(err, "schedule %s (%s)", name, spec)
	}
	r.logger.Info("cron job added", zap.String("job", name), zap.String("spec", spec))
	return id, nil
}

// Entries returns the number of scheduled jobs.
func (r *Runner) Entries() int { return len(r.cron.Entries()) }

func (r *Runner) Start() {
	r.logger.Info("cron started")
	r.cron.Start()
}

// Stop waits for running jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("cron stopped")
}

// StatsJob logs a registry summary.
func StatsJob(reg *room.Registry, logger *zap.Logger) func(context.Context) {
	return func(context.Context) {
		s := reg.Stats()
		logger.Info("room stats",
			zap.Int("rooms", s.Rooms),
			zap.Int("subscribers", s.Subscribers),
			zap.Uint64("dropped_subscribers", s.Dropped),
			zap.Any("by_mechanism", s.ByMechanism),
			zap.Any("by_status", s.ByStatus))
	}
}
