package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"editbot/pkg/logx"
)

// DefaultPruneSchedule runs retention once an hour.
const DefaultPruneSchedule = "@hourly"

// Retention prunes a store on a cron schedule.
type Retention struct {
	st     Store
	log    logx.Logger
	parser cron.Parser
	now    func() time.Time

	mu   sync.Mutex
	c    *cron.Cron
	keep atomic.Int64 // time.Duration; read by running jobs without mu
}

func NewRetention(st Store, log logx.Logger) *Retention {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Retention{
		st:     st,
		log:    log.With(logx.String("comp", "storage.retention")),
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		now:    time.Now,
	}
}

// Start (re)schedules pruning of entries older than keep. A zero keep
// stops pruning. Calling Start again replaces the previous schedule.
func (r *Retention) Start(ctx context.Context, spec string, keep time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.keep.Store(int64(keep))
	if keep <= 0 {
		return nil
	}
	if spec == "" {
		spec = DefaultPruneSchedule
	}
	sched, err := r.parser.Parse(spec)
	if err != nil {
		return err
	}
	c := cron.New(cron.WithParser(r.parser))
	c.Schedule(sched, cron.FuncJob(func() { _, _ = r.RunOnce(ctx) }))
	c.Start()
	r.c = c
	r.log.Info("retention scheduled", logx.String("schedule", spec), logx.Duration("keep", keep))
	return nil
}

// RunOnce prunes immediately using the current retention.
func (r *Retention) RunOnce(ctx context.Context) (int64, error) {
	keep := time.Duration(r.keep.Load())
	if keep <= 0 || ctx.Err() != nil {
		return 0, ctx.Err()
	}
	pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	n, err := r.st.Prune(pctx, r.now().Add(-keep))
	if err != nil {
		r.log.Warn("audit prune failed", logx.Err(err))
		return 0, err
	}
	if n > 0 {
		r.log.Info("audit pruned", logx.Int64("rows", n))
	}
	return n, nil
}

func (r *Retention) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Retention) stopLocked() {
	if r.c == nil {
		return
	}
	<-r.c.Stop().Done()
	r.c = nil
}
