// Package app wires configuration, storage, transport, the notifier and
// the sensor sources into one runnable bot.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"pirbot/internal/alarm"
	"pirbot/internal/commands"
	"pirbot/internal/config"
	"pirbot/internal/notifier"
	"pirbot/internal/sensor"
	"pirbot/internal/soundflag"
	"pirbot/internal/storage"
	kit "pirbot/internal/transport"
	"pirbot/internal/transport/telegram"
	logx "pirbot/pkg/logx"
)

type App struct {
	cfgPath string
	cfg     *config.Config
	log     logx.Logger

	store    *storage.Store
	sound    *soundflag.Flag
	player   *alarm.Player
	adapter  *telegram.Adapter
	router   *commands.Router
	notifier *notifier.Service
	source   sensor.Source
	cron     *cron.Cron

	updates chan kit.Update
	events  chan sensor.Event

	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	log, err := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.Storage.BusyTimeout.Std(),
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeout.Std(),
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	sound := soundflag.New(cfg.Alarm.FlagPath, log.With(logx.String("comp", "soundflag")))
	player := alarm.NewPlayer(cfg.Alarm.SoundPath, cfg.Alarm.Player, log.With(logx.String("comp", "alarm")))

	notif := notifier.New(notifier.Config{
		RetryMax:   cfg.Notifier.RetryMax,
		RetryDelay: cfg.Notifier.RetryDelay.Std(),
		RatePerSec: cfg.Notifier.RatePerSec,
	}, adapter, store, store, log.With(logx.String("comp", "notifier")))

	router := commands.NewRouter(&commands.Deps{
		Store:     store,
		Sound:     sound,
		Alarm:     player,
		Adapter:   adapter,
		Log:       log,
		StartedAt: time.Now(),
	})

	a := &App{
		cfgPath:  cfgPath,
		cfg:      cfg,
		log:      log,
		store:    store,
		sound:    sound,
		player:   player,
		adapter:  adapter,
		router:   router,
		notifier: notif,
		updates:  make(chan kit.Update, 64),
		events:   make(chan sensor.Event, 16),
		done:     make(chan struct{}),
	}

	if err := a.buildSource(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) buildSource() error {
	cfg := a.cfg.Sensor
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "gpio":
		reader, err := sensor.NewRealPinReader(cfg.Pins)
		if err != nil {
			return fmt.Errorf("gpio sensor: %w", err)
		}
		a.source = sensor.NewPoller(reader, cfg.PollInterval.Std(), a.log.With(logx.String("comp", "sensor.gpio")))
	case "mqtt":
		src, err := sensor.NewMQTTSource(sensor.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
		}, a.log.With(logx.String("comp", "sensor.mqtt")))
		if err != nil {
			return fmt.Errorf("mqtt sensor: %w", err)
		}
		a.source = src
	case "none":
		a.log.Warn("sensor driver is none; alerts only via message bus testing hooks")
	}
	return nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return err
	}

	go func() {
		a.router.Run(runCtx, a.updates)
	}()

	go a.alertLoop(runCtx)

	if a.source != nil {
		go func() {
			if err := a.source.Run(runCtx, a.events); err != nil {
				a.log.Error("sensor source stopped", logx.Err(err))
			}
		}()
	}

	if a.cfg.Heartbeat.Enabled {
		if err := a.startHeartbeat(runCtx); err != nil {
			cancel()
			return err
		}
	}

	go a.watchConfig(runCtx)

	a.log.Info("bot started",
		logx.String("sensor", a.cfg.Sensor.Driver),
		logx.Bool("heartbeat", a.cfg.Heartbeat.Enabled))
	return nil
}

// alertLoop reacts to motion events: local alarm first (when the sound
// flag allows it), then the fan-out. Deliver blocks until every recipient
// has a terminal outcome, so a burst of events drains sequentially.
func (a *App) alertLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.events:
			a.OnAlert(ctx, ev)
		}
	}
}

// OnAlert is the alert ingestion entry point: local playback side effect
// plus notification fan-out.
func (a *App) OnAlert(ctx context.Context, ev sensor.Event) {
	a.log.Info("motion alert", logx.Int("sensor_active", ev.ActiveCount))

	if a.sound.Enabled() {
		go func() {
			if err := a.player.Play(ctx); err != nil {
				a.log.Warn("alarm playback failed", logx.Err(err))
			}
		}()
	} else {
		a.log.Debug("sound disabled; skipping local alarm")
	}

	a.notifier.Deliver(ctx, ev.Message, ev.ActiveCount)
}

func (a *App) startHeartbeat(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(a.cfg.Heartbeat.Schedule, func() {
		a.log.Debug("heartbeat fan-out")
		a.notifier.Deliver(ctx, "✅ Motion alarm appliance is online.", 0)
	})
	if err != nil {
		return fmt.Errorf("heartbeat schedule %q: %w", a.cfg.Heartbeat.Schedule, err)
	}
	c.Start()
	a.cron = c
	return nil
}

// watchConfig hot-applies notifier tunables on config file changes. Other
// sections (token, storage path, sensor driver) need a restart.
func (a *App) watchConfig(ctx context.Context) {
	w := config.NewWatcher(a.cfgPath, a.log.With(logx.String("comp", "config")))
	err := w.Run(ctx, func(cfg *config.Config) {
		a.notifier.Apply(notifier.Config{
			RetryMax:   cfg.Notifier.RetryMax,
			RetryDelay: cfg.Notifier.RetryDelay.Std(),
			RatePerSec: cfg.Notifier.RatePerSec,
		})
		a.log.Info("notifier settings applied",
			logx.Int("retry_max", cfg.Notifier.RetryMax),
			logx.Duration("retry_delay", cfg.Notifier.RetryDelay.Std()),
			logx.Int("rate_per_sec", cfg.Notifier.RatePerSec))
	})
	if err != nil {
		a.log.Warn("config watch unavailable", logx.Err(err))
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	_ = a.adapter.Stop(ctx)
	if a.source != nil {
		_ = a.source.Close()
	}
	err := a.store.Close()
	_ = a.log.Close()
	return err
}
