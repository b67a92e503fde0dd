package jobs

import (
    "context"
    "time"

    "github.com/robfig/cron/v3"
    "github.com/rs/zerolog"

    "github.com/owentl/gitlab-prometheus/internal/config"
)

type service interface {
    RefreshIteration(ctx context.Context) error
}

// Cron keeps the current-iteration cache warm so the first scrape after an
// iteration boundary does not pay the extra lookup. It never publishes
// metrics; publishing is scrape-triggered only.
type Cron struct {
    cfg config.Config
    log zerolog.Logger
    svc service
    c   *cron.Cron
}

func NewCron(cfg config.Config, log zerolog.Logger, svc service) *Cron {
    loc, err := time.LoadLocation(cfg.TZ)
    if err != nil { loc = time.Local }
    c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
    cr := &Cron{cfg: cfg, log: log, svc: svc, c: c}
    _, _ = c.AddFunc(cfg.IterationCron, cr.refresh)
    return cr
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { cr.c.Stop() }

func (cr *Cron) refresh() {
    ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
    defer cancel()
    if err := cr.svc.RefreshIteration(ctx); err != nil {
        cr.log.Error().Err(err).Msg("cron: iteration refresh failed")
        return
    }
    cr.log.Info().Msg("cron: iteration cache refreshed")
}
