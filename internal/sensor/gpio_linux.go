//go:build linux

package sensor

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealPinReader reads PIR pins from actual hardware via the Linux GPIO
// character device.
type RealPinReader struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
}

// NewRealPinReader requests the given BCM pins as inputs with pull-down,
// matching Pi boot defaults so external PIR modules behave consistently.
func NewRealPinReader(pins []int) (*RealPinReader, error) {
	pins = dedupePins(pins)

	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealPinReader{chip: chip}
	for _, pin := range pins {
		line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullDown)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("request pin %d: %w", pin, err)
		}
		r.lines = append(r.lines, line)
	}
	return r, nil
}

// ReadActive counts pins currently high. PIR modules drive the line high
// on motion, so no inversion is applied.
func (r *RealPinReader) ReadActive() (int, error) {
	active := 0
	for _, line := range r.lines {
		v, err := line.Value()
		if err != nil {
			return 0, fmt.Errorf("read pin %d: %w", line.Offset(), err)
		}
		if v != 0 {
			active++
		}
	}
	return active, nil
}

// Close releases GPIO resources, reconfiguring pins back to input with
// pull-down so reboots start from a clean state.
func (r *RealPinReader) Close() error {
	var firstErr error
	for _, line := range r.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("reconfigure pin %d: %w", line.Offset(), err)
		}
		if err := line.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close pin %d: %w", line.Offset(), err)
		}
	}
	r.lines = nil
	if r.chip != nil {
		if err := r.chip.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close chip: %w", err)
		}
		r.chip = nil
	}
	return firstErr
}
