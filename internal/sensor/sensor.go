// Package sensor produces alert events from a physical PIR array or a
// message-bus feed. Sources only decide WHEN an alert fires; delivery and
// audit belong to the notifier.
package sensor

import (
	"context"
	"fmt"
)

// Event is one motion alert. ActiveCount is how many sensors saw motion
// when the event fired; it is carried into the delivery ledger as metadata
// and never gates delivery.
type Event struct {
	Message     string
	ActiveCount int
}

// NewEvent builds the standard alert message for n active sensors.
func NewEvent(n int) Event {
	return Event{
		Message:     fmt.Sprintf("Sensor detected motion! (%d sensors active)", n),
		ActiveCount: n,
	}
}

// Source emits motion events until ctx is cancelled.
type Source interface {
	Run(ctx context.Context, out chan<- Event) error
	Close() error
}
