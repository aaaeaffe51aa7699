package persona

import (
	"context"
	"fmt"
	"log/slog"

	robfigcron "github.com/robfig/cron/v3"
)

// Reloader re-reads the special dates on a cron schedule.
type Reloader struct {
	lib  *Library
	spec string
	cron *robfigcron.Cron
}

// NewReloader validates spec (five fields) and returns a Reloader.
func NewReloader(lib *Library, spec string) (*Reloader, error) {
	parser := robfigcron.NewParser(
		robfigcron.Minute | robfigcron.Hour | robfigcron.Dom | robfigcron.Month | robfigcron.Dow,
	)
	c := robfigcron.New(robfigcron.WithParser(parser))
	r := &Reloader{lib: lib, spec: spec, cron: c}
	if _, err := c.AddFunc(spec, r.reload); err != nil {
		return nil, fmt.Errorf("persona: invalid reload schedule %q: %w", spec, err)
	}
	return r, nil
}

// Start runs the schedule until ctx is cancelled.
func (r *Reloader) Start(ctx context.Context) error {
	r.cron.Start()
	slog.Info("persona: reloader started", "schedule", r.spec)

	<-ctx.Done()
	<-r.cron.Stop().Done()
	slog.Info("persona: reloader stopped")
	return ctx.Err()
}

func (r *Reloader) reload() {
	if err := r.lib.ReloadDates(); err != nil {
		slog.Error("persona: special dates reload failed", "err", err)
		return
	}
	slog.Info("persona: special dates reloaded", "count", len(r.lib.Dates()))
}
