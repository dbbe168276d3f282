package sensor

import (
	"context"
	"errors"
	"testing"
	"time"

	logx "pirbot/pkg/logx"
)

func TestNewEventMessage(t *testing.T) {
	t.Parallel()
	ev := NewEvent(3)
	if ev.ActiveCount != 3 {
		t.Errorf("ActiveCount = %d, want 3", ev.ActiveCount)
	}
	want := "Sensor detected motion! (3 sensors active)"
	if ev.Message != want {
		t.Errorf("Message = %q, want %q", ev.Message, want)
	}
}

func TestPollerEmitsOnlyOnMotion(t *testing.T) {
	t.Parallel()
	reader := NewFakePinReader(0, 0, 2, 0)
	p := NewPoller(reader, 5*time.Millisecond, logx.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out := make(chan Event, 1)
	go func() { _ = p.Run(ctx, out) }()

	select {
	case ev := <-out:
		if ev.ActiveCount != 2 {
			t.Fatalf("ActiveCount = %d, want 2", ev.ActiveCount)
		}
	case <-ctx.Done():
		t.Fatal("no event before timeout")
	}
}

func TestPollerSurvivesReadErrors(t *testing.T) {
	t.Parallel()
	reader := NewFakePinReader(1)
	reader.SetReadError(errors.New("bus glitch"))
	p := NewPoller(reader, 2*time.Millisecond, logx.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out := make(chan Event, 1)
	go func() { _ = p.Run(ctx, out) }()

	// Clear the error after a few failing polls; the poller should recover.
	time.Sleep(10 * time.Millisecond)
	reader.SetReadError(nil)

	select {
	case ev := <-out:
		if ev.ActiveCount != 1 {
			t.Fatalf("ActiveCount = %d, want 1", ev.ActiveCount)
		}
	case <-ctx.Done():
		t.Fatal("poller never recovered from read errors")
	}
}

func TestPollerStopsOnCancel(t *testing.T) {
	t.Parallel()
	reader := NewFakePinReader(0)
	p := NewPoller(reader, time.Millisecond, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx, make(chan Event))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop on cancel")
	}
}

func TestFakePinReaderRepeatsLastSample(t *testing.T) {
	t.Parallel()
	r := NewFakePinReader(1, 2)
	for _, want := range []int{1, 2, 2, 2} {
		got, err := r.ReadActive()
		if err != nil {
			t.Fatalf("ReadActive: %v", err)
		}
		if got != want {
			t.Fatalf("ReadActive = %d, want %d", got, want)
		}
	}
}

func TestDedupePins(t *testing.T) {
	t.Parallel()
	got := dedupePins([]int{17, 18, 17, 19, 18})
	want := []int{17, 18, 19}
	if len(got) != len(want) {
		t.Fatalf("dedupePins = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dedupePins = %v, want %v", got, want)
		}
	}
}
