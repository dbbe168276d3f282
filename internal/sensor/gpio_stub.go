//go:build !linux

package sensor

import "errors"

// RealPinReader is not available on non-Linux platforms.
type RealPinReader struct{}

func NewRealPinReader(pins []int) (*RealPinReader, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

func (r *RealPinReader) ReadActive() (int, error) {
	return 0, errors.New("gpio: not supported")
}

func (r *RealPinReader) Close() error { return nil }
