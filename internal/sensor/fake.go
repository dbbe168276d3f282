package sensor

import (
	"errors"
	"sync"
)

// FakePinReader is a test double that returns scripted active-pin counts.
// It is safe for concurrent use so tests can reconfigure it while a Poller
// is running.
type FakePinReader struct {
	mu sync.Mutex

	// samples contains scripted counts. Each ReadActive call consumes the
	// next sample; when exhausted, the last sample repeats.
	samples []int
	index   int

	closed  bool
	readErr error
}

func NewFakePinReader(samples ...int) *FakePinReader {
	return &FakePinReader{samples: samples}
}

// SetReadError makes subsequent ReadActive calls fail (nil clears it).
func (f *FakePinReader) SetReadError(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
}

func (f *FakePinReader) ReadActive() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return 0, f.readErr
	}
	if len(f.samples) == 0 {
		return 0, errors.New("no samples configured")
	}
	n := f.samples[f.index]
	if f.index < len(f.samples)-1 {
		f.index++
	}
	return n, nil
}

func (f *FakePinReader) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakePinReader) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
