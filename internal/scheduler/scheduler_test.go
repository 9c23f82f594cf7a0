package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type countingPoller struct {
	mu    sync.Mutex
	calls int
}

func (p *countingPoller) Poll(_ context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
}

func (p *countingPoller) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type mockPinger struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockPinger) PingUnfed(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.err
}

func (m *mockPinger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerPollsDues(t *testing.T) {
	defer goleak.VerifyNone(t)

	poller := &countingPoller{}
	s := New(poller, &mockPinger{}, time.UTC, discard())
	s.SetTickInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for poller.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("polls = %d, want at least 3", poller.count())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestSchedulerWithoutDues(t *testing.T) {
	defer goleak.VerifyNone(t)

	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s := New(nil, &mockPinger{}, loc, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestSchedulerBadSpec(t *testing.T) {
	s := New(nil, &mockPinger{}, time.UTC, discard())
	s.SetPingSpec("not a cron line")
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected error for invalid spec")
	}
}

func TestPing(t *testing.T) {
	pinger := &mockPinger{err: errors.New("discord down")}
	s := New(nil, pinger, time.UTC, discard())

	s.ping(context.Background())
	if pinger.count() != 1 {
		t.Errorf("pings = %d, want 1", pinger.count())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.ping(ctx)
	if pinger.count() != 1 {
		t.Errorf("ping after cancel ran, pings = %d", pinger.count())
	}
}
