// Package app wires the daemon together: config, logging, store, alert
// pipeline, Telegram transport, and the trigger engine.
package app

import (
	"context"
	"strings"
	"time"

	"remindd/internal/config"
	"remindd/internal/engine"
	"remindd/internal/eventbus"
	"remindd/internal/notifier"
	"remindd/internal/position"
	"remindd/internal/runtime/supervisor"
	"remindd/internal/store"
	"remindd/internal/transport/telegram"
	logx "remindd/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger

	bus     eventbus.Bus
	store   store.Store
	adapter *telegram.Adapter
	notif   *notifier.Service
	engine  *engine.Service

	sup *supervisor.Supervisor
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	bus := eventbus.New()

	busyTimeout, err := config.ParseDurationField("store.busy_timeout", cfg.Store.BusyTimeout)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(store.Config{
		Driver:      cfg.Store.Driver,
		Path:        cfg.Store.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "store")), bus)
	if err != nil {
		return nil, err
	}

	// Without a Telegram token the daemon still runs: alerts go to the log
	// and location reminders report as unavailable.
	var (
		ad      *telegram.Adapter
		deliver notifier.Adapter
		src     position.Source = position.Unavailable{}
	)
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		log.Warn("telegram token not configured; alerts go to the log only")
		deliver = notifier.NewLogAdapter(log.With(logx.String("comp", "alerts")))
	} else {
		pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
		if err != nil {
			return nil, err
		}
		ad, err = telegram.New(telegram.Config{
			Token:        cfg.Telegram.Token,
			ChatID:       cfg.Telegram.ChatID,
			OwnerUserIDs: cfg.Telegram.OwnerUserIDs,
			PollTimeout:  pollTimeout,
		}, st, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
		deliver = ad
		src = ad
	}

	ncfg, err := mapNotifierConfig(cfg.Notifier)
	if err != nil {
		return nil, err
	}
	notif := notifier.New(ncfg, deliver, log.With(logx.String("comp", "notifier")), bus)

	baselineTimeout, err := config.ParseDurationOrDefault("engine.baseline_timeout", cfg.Engine.BaselineTimeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	eng := engine.New(engine.Config{
		Timezone:        cfg.Engine.Timezone,
		BaselineTimeout: baselineTimeout,
	}, st, src, notif, bus, log.With(logx.String("comp", "engine")))

	return &App{
		cfgm:    cfgm,
		logs:    logSvc,
		log:     log,
		bus:     bus,
		store:   st,
		adapter: ad,
		notif:   notif,
		engine:  eng,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))

	if a.adapter != nil {
		a.adapter.Start()
	}
	a.notif.Start(a.sup.Context())
	if err := a.engine.Start(a.sup.Context()); err != nil {
		return err
	}

	a.sup.Go("config-watch", a.cfgm.Watch)
	cfgCh := a.cfgm.Subscribe(1)
	a.sup.Go("config-apply", func(ctx context.Context) error {
		defer a.cfgm.Unsubscribe(cfgCh)
		for {
			select {
			case <-ctx.Done():
				return nil
			case cfg, ok := <-cfgCh:
				if !ok {
					return nil
				}
				a.applyConfig(cfg)
			}
		}
	})

	a.log.Info("remindd started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	_ = ctx
	a.engine.Stop()
	a.notif.Stop()
	if a.adapter != nil {
		a.adapter.Stop()
	}
	if a.sup != nil {
		if err := a.sup.Stop(10 * time.Second); err != nil {
			a.log.Warn("shutdown incomplete", logx.Err(err))
		}
	}
	err := a.store.Close()
	a.log.Info("remindd stopped")
	_ = a.logs.Close()
	return err
}

// applyConfig handles the live-reloadable sections. Store driver, Telegram
// token and engine timezone need a restart; logging and notifier knobs take
// effect immediately.
func (a *App) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	ncfg, err := mapNotifierConfig(cfg.Notifier)
	if err != nil {
		a.log.Warn("notifier config rejected", logx.Err(err))
		return
	}
	a.notif.Apply(ncfg)
	a.log.Info("config applied")
}

func mapNotifierConfig(nc *config.NotifierConfig) (notifier.Config, error) {
	if nc == nil {
		return notifier.Config{}, nil
	}
	sendTimeout, err := config.ParseDurationField("notifier.send_timeout", nc.SendTimeout)
	if err != nil {
		return notifier.Config{}, err
	}
	dedupWindow, err := config.ParseDurationField("notifier.dedup_window", nc.DedupWindow)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Workers:     nc.Workers,
		QueueSize:   nc.QueueSize,
		RatePerSec:  nc.RatePerSec,
		SendTimeout: sendTimeout,
		DedupWindow: dedupWindow,
	}, nil
}
