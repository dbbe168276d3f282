package notifier

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pirbot/internal/storage"
	kit "pirbot/internal/transport"
	logx "pirbot/pkg/logx"
)

// Registry supplies the point-in-time recipient set read at send time.
type Registry interface {
	Recipients(ctx context.Context) ([]int64, error)
}

// Ledger records one terminal outcome per recipient per fan-out.
type Ledger interface {
	AppendDelivery(ctx context.Context, chatID string, sensorActive int, status storage.Outcome) error
}

type Config struct {
	// RetryMax is the total number of send attempts per recipient.
	RetryMax int
	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration
	// RatePerSec caps outbound sends across all recipients.
	RatePerSec int
}

const (
	defaultRetryMax   = 5
	defaultRetryDelay = 3 * time.Second
	defaultRatePerSec = 10
)

func (c Config) withDefaults() Config {
	if c.RetryMax <= 0 {
		c.RetryMax = defaultRetryMax
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = defaultRatePerSec
	}
	return c
}

// Service fans one alert out to every registered recipient. It owns no
// persistent state; the registry and ledger do.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	sender   kit.Sender
	registry Registry
	ledger   Ledger
	log      logx.Logger
}

func New(cfg Config, sender kit.Sender, registry Registry, ledger Ledger, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	return &Service{
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		sender:   sender,
		registry: registry,
		ledger:   ledger,
		log:      log,
	}
}

// Apply swaps retry/rate settings at runtime. In-flight deliveries keep the
// settings they started with.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	s.mu.Unlock()
}

// Deliver broadcasts message to every registered recipient and blocks until
// each recipient has a terminal outcome in the ledger.
//
// An empty (or never-populated) registry yields exactly one no_chat_ids
// ledger row and no send attempts. A registry read fault is logged and then
// treated the same as an empty registry.
func (s *Service) Deliver(ctx context.Context, message string, sensorActive int) {
	ids, err := s.registry.Recipients(ctx)
	if err != nil {
		s.log.Warn("recipient snapshot failed; treating as empty registry", logx.Err(err))
		ids = nil
	}

	if len(ids) == 0 {
		s.log.Info("no recipients registered; skipping send", logx.Int("sensor_active", sensorActive))
		s.appendLedger(ctx, storage.NoRecipientChatID, sensorActive, storage.OutcomeNoRecipients)
		return
	}

	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	s.mu.Unlock()

	start := time.Now()
	s.log.Info("alert fan-out started", logx.Int("recipients", len(ids)), logx.Int("sensor_active", sensorActive))

	var wg sync.WaitGroup
	wg.Add(len(ids))
	for _, id := range ids {
		id := id
		go func() {
			defer wg.Done()
			outcome := s.deliverOne(ctx, cfg, lim, id, message)
			s.appendLedger(ctx, strconv.FormatInt(id, 10), sensorActive, outcome)
		}()
	}
	wg.Wait()

	s.log.Info("alert fan-out finished", logx.Int("recipients", len(ids)), logx.Duration("took", time.Since(start)))
}

// deliverOne runs the per-recipient retry loop: at most cfg.RetryMax
// attempts, a fixed context-aware delay between them, stop on first success.
func (s *Service) deliverOne(ctx context.Context, cfg Config, lim *rate.Limiter, chatID int64, message string) storage.Outcome {
	var last error
	for attempt := 1; attempt <= cfg.RetryMax; attempt++ {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				last = err
				break
			}
		}

		_, err := s.sender.SendText(ctx, kit.ChatTarget{ChatID: chatID}, message, &kit.SendOptions{DisablePreview: true})
		if err == nil {
			if attempt > 1 {
				s.log.Info("send recovered after retry", logx.Int64("chat_id", chatID), logx.Int("attempt", attempt))
			}
			return storage.OutcomeSuccess
		}
		last = err

		if attempt == cfg.RetryMax {
			break
		}
		s.log.Debug("send retry scheduled",
			logx.Int64("chat_id", chatID),
			logx.Int("attempt", attempt+1),
			logx.Int("max", cfg.RetryMax),
			logx.Duration("delay", cfg.RetryDelay),
			logx.Err(err))

		tmr := time.NewTimer(cfg.RetryDelay)
		select {
		case <-ctx.Done():
			if !tmr.Stop() {
				<-tmr.C
			}
			last = ctx.Err()
		case <-tmr.C:
		}
		if ctx.Err() != nil {
			break
		}
	}

	s.log.Warn("send failed permanently", logx.Int64("chat_id", chatID), logx.Int("attempts", cfg.RetryMax), logx.Err(last))
	return storage.OutcomeFailed
}

// appendLedger never lets a ledger fault escape: observability is
// sacrificed before delivery is.
func (s *Service) appendLedger(ctx context.Context, chatID string, sensorActive int, status storage.Outcome) {
	if err := s.ledger.AppendDelivery(ctx, chatID, sensorActive, status); err != nil {
		s.log.Error("ledger append failed", logx.String("chat_id", chatID), logx.String("status", string(status)), logx.Err(err))
	}
}
