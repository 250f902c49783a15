package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"openweather-device/internal/config"
	"openweather-device/internal/openweather"
	"openweather-device/internal/telemetry"
)

type fakeBroker struct {
	mu          sync.Mutex
	events      []string
	connectErr  error
	published   []telemetry.Measurement
	connections int
}

func (b *fakeBroker) record(ev string) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

func (b *fakeBroker) Connect(ctx context.Context) error {
	b.record("connect")
	if b.connectErr != nil {
		return b.connectErr
	}
	b.mu.Lock()
	b.connections++
	b.mu.Unlock()
	return nil
}

func (b *fakeBroker) Disconnect() { b.record("disconnect") }

func (b *fakeBroker) Sink() telemetry.Sink {
	return func(name string, value float64) {
		b.mu.Lock()
		b.published = append(b.published, telemetry.Measurement{Name: name, Value: value})
		b.mu.Unlock()
	}
}

func (b *fakeBroker) snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

type fakeSource struct {
	mu     sync.Mutex
	cycles int
	// onCycle runs after each cycle; used to stop the loop.
	onCycle func(n int)
}

func (s *fakeSource) PublishData(ctx context.Context, sink telemetry.Sink) openweather.CycleStats {
	s.mu.Lock()
	s.cycles++
	n := s.cycles
	s.mu.Unlock()

	sink(telemetry.TemperatureC, 21.5)
	sink(telemetry.HumidityPercentage, 60)
	if s.onCycle != nil {
		s.onCycle(n)
	}
	return openweather.CycleStats{Fetched: 4, Published: 2}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestRunner_Cycle(t *testing.T) {
	broker := &fakeBroker{}
	source := &fakeSource{}
	r := NewRunner(broker, source, time.Hour, quietLogger())

	stats := r.Cycle(context.Background())

	if stats.Published != 2 {
		t.Errorf("Published = %d, want 2", stats.Published)
	}
	if got := strings.Join(broker.snapshot(), ","); got != "connect,disconnect" {
		t.Errorf("events = %s, want connect,disconnect", got)
	}
	if len(broker.published) != 2 || broker.published[0].Name != telemetry.TemperatureC {
		t.Errorf("published = %v", broker.published)
	}
}

func TestRunner_Cycle_ConnectFailureSkipsFetch(t *testing.T) {
	var logs bytes.Buffer
	broker := &fakeBroker{connectErr: errors.New("mqtt connect: connection refused")}
	source := &fakeSource{}
	r := NewRunner(broker, source, time.Hour, slog.New(slog.NewTextHandler(&logs, nil)))

	stats := r.Cycle(context.Background())

	if stats != (openweather.CycleStats{}) {
		t.Errorf("stats = %+v, want zero", stats)
	}
	if source.cycles != 0 {
		t.Errorf("source cycles = %d, want 0", source.cycles)
	}
	if got := strings.Join(broker.snapshot(), ","); got != "connect" {
		t.Errorf("events = %s, want connect only", got)
	}
	if !strings.Contains(logs.String(), "skipping cycle") {
		t.Errorf("logs = %q, want connect failure logged", logs.String())
	}
}

func TestRunner_Run_RepeatsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := &fakeBroker{}
	source := &fakeSource{onCycle: func(n int) {
		if n == 3 {
			cancel()
		}
	}}
	r := NewRunner(broker, source, time.Millisecond, quietLogger())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil on cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if source.cycles != 3 {
		t.Errorf("cycles = %d, want 3", source.cycles)
	}
	want := "connect,disconnect,connect,disconnect,connect,disconnect,disconnect"
	if got := strings.Join(broker.snapshot(), ","); got != want {
		t.Errorf("events = %s, want %s", got, want)
	}
}

func TestRunner_Run_CancelDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	broker := &fakeBroker{}
	source := &fakeSource{}
	r := NewRunner(broker, source, time.Hour, quietLogger())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		source.mu.Lock()
		n := source.cycles
		source.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first cycle did not run")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop while sleeping")
	}
	if source.cycles != 1 {
		t.Errorf("cycles = %d, want 1", source.cycles)
	}
}

func TestRun_InvalidBaseURL(t *testing.T) {
	cfg := config.Config{APIBaseURL: "::not-a-url", PollInterval: time.Minute}
	if err := Run(context.Background(), cfg, quietLogger()); err == nil {
		t.Fatal("Run() error = nil, want endpoint error")
	}
}
