// Package app wires the bot together: config, logging, transport, schedule
// provider, notification core, tick scheduler and metrics.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"

	"flightbot/internal/bot"
	"flightbot/internal/config"
	"flightbot/internal/flightwatch"
	"flightbot/internal/metrics"
	"flightbot/internal/runtime/supervisor"
	"flightbot/internal/sched"
	"flightbot/internal/schedule"
	"flightbot/internal/storage"
	"flightbot/internal/subscribers"
	kit "flightbot/internal/transport"
	"flightbot/internal/transport/telegram"
	"flightbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter kit.Adapter
	router  *bot.Router

	subs  *subscribers.Store
	store storage.Store

	ticker *sched.Service
	watch  *flightwatch.Service

	collector *metrics.Collector
	metricsrv *metrics.Server

	tick    time.Duration
	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	secrets, err := config.LoadSecrets()
	if err != nil {
		return nil, err
	}

	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
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

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	tick, err := config.ParseDurationOrDefault("watch.tick_interval", cfg.Watch.TickInterval, 5*time.Minute)
	if err != nil {
		return nil, err
	}

	ad, err := telegram.New(telegram.Config{
		Token:       secrets.TelegramToken,
		PollTimeout: pollTimeout,
		RatePerSec:  cfg.Telegram.RatePerSec,
	}, logSvc.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	subs := subscribers.NewStore(cfg.Subscribers.Path, logSvc.Logger().With(logx.String("comp", "subscribers")))
	subs.Load()

	var st storage.Store
	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return nil, err
		}
		st, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, logSvc.Logger().With(logx.String("comp", "storage")))
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
	}

	ticker := sched.New(sched.Config{Timezone: cfg.Station.Timezone}, logSvc.Logger().With(logx.String("comp", "sched")))
	loc := ticker.Location()

	provider := schedule.NewClient(schedule.Config{
		APIKey:  secrets.YandexAPIKey,
		Station: cfg.Station.Code,
		System:  cfg.Station.System,
		Lang:    cfg.Station.Lang,
	}, loc, logSvc.Logger().With(logx.String("comp", "schedule")))

	var (
		collector *metrics.Collector
		metricsrv *metrics.Server
		watchMet  flightwatch.Metrics
	)
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		collector = metrics.NewCollector(reg)
		collector.SetSubscribers(subs.Count())
		metricsrv = metrics.NewServer(cfg.Metrics.Addr, reg, logSvc.Logger().With(logx.String("comp", "metrics")))
		watchMet = collector
	}

	watch := flightwatch.New(flightwatch.Config{
		Window: flightwatch.Window{
			Ceiling:      cfg.Watch.Window.CeilingMin,
			StandardFrom: cfg.Watch.Window.StandardFromMin,
			StandardTo:   cfg.Watch.Window.StandardToMin,
		},
	}, provider, subs, ad, st, watchMet, loc, logSvc.Logger().With(logx.String("comp", "flightwatch")))

	router := bot.NewRouter(ad, subs, logSvc.Logger().With(logx.String("comp", "commands")))
	if collector != nil {
		router.OnCountChange(collector.SetSubscribers)
	}

	return &App{
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		adapter:   ad,
		router:    router,
		subs:      subs,
		store:     st,
		ticker:    ticker,
		watch:     watch,
		collector: collector,
		metricsrv: metricsrv,
		tick:      tick,
		updates:   make(chan kit.Update, 256),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.ticker.Start(a.sup.Context())
	// Per-pass timeout equals the tick so a stuck pass can never pile up.
	if err := a.ticker.AddInterval("flightwatch.pass", a.tick, a.tick, a.watch.RunPass); err != nil {
		return err
	}

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	// Config hot reload fan-out.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	if a.metricsrv != nil {
		a.metricsrv.Start()
	}

	// Keep the Telegram /menu list in sync (best-effort).
	if mu, ok := a.adapter.(kit.CommandMenuUpdater); ok {
		mctx, cancel := context.WithTimeout(a.sup.Context(), 10*time.Second)
		if err := mu.UpdateMenuCommands(mctx, bot.MenuCommands()); err != nil {
			a.log.Warn("menu update failed", logx.Err(err))
		}
		cancel()
	}

	a.notifySystemd()

	a.log.Info("app started", logx.Int("subscribers", a.subs.Count()), logx.Duration("tick", a.tick))
	return nil
}

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
	a.watch.Apply(flightwatch.Config{
		Window: flightwatch.Window{
			Ceiling:      cfg.Watch.Window.CeilingMin,
			StandardFrom: cfg.Watch.Window.StandardFromMin,
			StandardTo:   cfg.Watch.Window.StandardToMin,
		},
	})

	// Tick interval and station changes need a restart; say so once instead
	// of surprising the operator with a stale cadence.
	if tick, err := config.ParseDurationOrDefault("watch.tick_interval", cfg.Watch.TickInterval, 5*time.Minute); err == nil && tick != a.tick {
		a.log.Warn("watch.tick_interval changed; restart required to take effect",
			logx.Duration("current", a.tick), logx.Duration("new", tick))
	}

	a.log.Info("config reloaded")
}

// notifySystemd reports readiness and starts the watchdog keepalive when the
// process runs under systemd. Both are no-ops elsewhere.
func (a *App) notifySystemd() {
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	})
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	a.log.Info("stopping")

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Bound each shutdown step so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}
		if err := fn(stepCtx); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
	}

	step("scheduler", 2*time.Second, func(c context.Context) error { a.ticker.Stop(c); return nil })
	step("adapter", 3*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	if a.metricsrv != nil {
		step("metrics", 2*time.Second, func(c context.Context) error { return a.metricsrv.Stop(c) })
	}
	if a.store != nil {
		step("storage", time.Second, func(context.Context) error { return a.store.Close() })
	}
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}

func validate(cfg *config.Config) error {
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("watch.tick_interval", cfg.Watch.TickInterval); err != nil {
		return err
	}
	w := cfg.Watch.Window
	if w.CeilingMin < 0 || w.StandardFromMin < 0 || w.StandardToMin < 0 {
		return fmt.Errorf("watch.window: bounds must be >= 0")
	}
	if w.StandardFromMin > w.StandardToMin {
		return fmt.Errorf("watch.window: standard_from_min must be <= standard_to_min")
	}
	if tz := cfg.Station.Timezone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("station.timezone: invalid %q: %w", tz, err)
		}
	}
	return nil
}
