package sensor

import (
	"context"
	"time"

	logx "pirbot/pkg/logx"
)

// PinReader reads the PIR input pins. The real implementation uses the
// Linux GPIO character device; the fake allows testing without hardware.
type PinReader interface {
	// ReadActive returns how many pins currently report motion.
	ReadActive() (int, error)

	// Close releases GPIO resources.
	Close() error
}

// Poller samples a PinReader at a fixed interval and emits one event per
// sample with at least one active pin.
type Poller struct {
	reader   PinReader
	interval time.Duration
	log      logx.Logger
}

func NewPoller(reader PinReader, interval time.Duration, log logx.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poller{reader: reader, interval: interval, log: log}
}

func (p *Poller) Run(ctx context.Context, out chan<- Event) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := p.reader.ReadActive()
			if err != nil {
				p.log.Warn("sensor read failed", logx.Err(err))
				continue
			}
			if n == 0 {
				continue
			}
			ev := NewEvent(n)
			select {
			case out <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (p *Poller) Close() error { return p.reader.Close() }

// dedupePins drops duplicate pin numbers, preserving order.
func dedupePins(pins []int) []int {
	seen := make(map[int]struct{}, len(pins))
	out := make([]int, 0, len(pins))
	for _, p := range pins {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
