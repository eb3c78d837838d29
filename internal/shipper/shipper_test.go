package shipper

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/draftpace/draftpace/internal/compute"
	"github.com/draftpace/draftpace/internal/config"
	"github.com/draftpace/draftpace/internal/pacing"
)

// fakeWriter records written messages and fails the first failN writes.
type fakeWriter struct {
	mu       sync.Mutex
	received []kafka.Message
	failN    int
	failErr  error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return f.failErr
	}
	f.received = append(f.received, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWriter) messages() []kafka.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]kafka.Message, len(f.received))
	copy(out, f.received)
	return out
}

func (f *fakeWriter) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func kafkaCfg() config.KafkaConfig {
	return config.KafkaConfig{
		Brokers:    []string{"unused:9092"},
		Topic:      "draftpace.output",
		BufferSize: 10,
	}
}

func makeOutput(session string) compute.Output {
	return compute.Output{
		Status:           compute.StatusActive,
		SessionID:        session,
		Target:           "1001",
		Mode:             pacing.KeepUp,
		Timestamp:        time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		RecommendedPower: 210,
	}
}

// newTestShipper returns a Shipper on a fake writer with millisecond backoff.
func newTestShipper(w *fakeWriter) *Shipper {
	s := newWithWriter(kafkaCfg(), w)
	s.bo = &backoff{initial: time.Millisecond, max: 5 * time.Millisecond, current: time.Millisecond}
	return s
}

// runShipper starts Run and returns a stop func that waits for it to exit.
func runShipper(t *testing.T, s *Shipper) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Run() did not return after context cancellation")
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// --- Tests ---

func TestShipper_DeliversOutput(t *testing.T) {
	w := &fakeWriter{}
	s := newTestShipper(w)
	stop := runShipper(t, s)
	defer stop()

	s.Ship(makeOutput("sess-1"))
	waitFor(t, func() bool { return len(w.messages()) == 1 })

	msg := w.messages()[0]
	if string(msg.Key) != "sess-1" {
		t.Errorf("Key = %q, want sess-1", msg.Key)
	}
	var got compute.Output
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("unmarshal value: %v", err)
	}
	if got.RecommendedPower != 210 {
		t.Errorf("RecommendedPower = %v, want 210", got.RecommendedPower)
	}
}

func TestShipper_MultipleOutputsInOrder(t *testing.T) {
	w := &fakeWriter{}
	s := newTestShipper(w)
	stop := runShipper(t, s)
	defer stop()

	for i := 0; i < 5; i++ {
		out := makeOutput("sess-1")
		out.RecommendedPower = float64(i)
		s.Ship(out)
	}
	waitFor(t, func() bool { return len(w.messages()) == 5 })

	for i, msg := range w.messages() {
		var got compute.Output
		json.Unmarshal(msg.Value, &got) //nolint:errcheck
		if got.RecommendedPower != float64(i) {
			t.Errorf("message %d: RecommendedPower = %v, want %d", i, got.RecommendedPower, i)
		}
	}
}

func TestShipper_RetriesTransientError(t *testing.T) {
	w := &fakeWriter{failN: 3, failErr: errors.New("broker unreachable")}
	s := newTestShipper(w)
	stop := runShipper(t, s)
	defer stop()

	s.Ship(makeOutput("sess-1"))
	waitFor(t, func() bool { return len(w.messages()) == 1 })
}

func TestShipper_DiscardsOnPermanentError(t *testing.T) {
	w := &fakeWriter{failN: 1, failErr: kafka.TopicAuthorizationFailed}
	s := newTestShipper(w)
	stop := runShipper(t, s)
	defer stop()

	s.Ship(makeOutput("dropped"))
	s.Ship(makeOutput("kept"))
	waitFor(t, func() bool { return len(w.messages()) == 1 })

	if key := string(w.messages()[0].Key); key != "kept" {
		t.Errorf("Key = %q, want kept", key)
	}
}

func TestShipper_BufferEvictsOldest(t *testing.T) {
	// BufferSize=3; Ship 5 items while the shipper is not running.
	cfg := kafkaCfg()
	cfg.BufferSize = 3
	s := newWithWriter(cfg, &fakeWriter{})

	for i := 0; i < 5; i++ {
		out := makeOutput("sess")
		out.RecommendedPower = float64(i)
		s.Ship(out)
	}

	var powers []float64
	for len(s.buf) > 0 {
		powers = append(powers, (<-s.buf).RecommendedPower)
	}
	if len(powers) != 3 {
		t.Fatalf("buffer has %d items, want 3", len(powers))
	}
	for i, want := range []float64{2, 3, 4} {
		if powers[i] != want {
			t.Errorf("powers[%d] = %.0f, want %.0f", i, powers[i], want)
		}
	}
}

func TestToMessage(t *testing.T) {
	out := makeOutput("sess-9")
	msg, err := toMessage(out)
	if err != nil {
		t.Fatalf("toMessage: %v", err)
	}
	if string(msg.Key) != "sess-9" {
		t.Errorf("Key = %q, want sess-9", msg.Key)
	}
	if !msg.Time.Equal(out.Timestamp) {
		t.Errorf("Time = %v, want %v", msg.Time, out.Timestamp)
	}
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["status"] != "active" || headers["mode"] != "keepUp" {
		t.Errorf("headers = %v", headers)
	}

	out.SessionID = ""
	msg, _ = toMessage(out)
	if string(msg.Key) != "1001" {
		t.Errorf("Key without session = %q, want 1001", msg.Key)
	}
}

func TestShipper_GracefulShutdownClosesWriter(t *testing.T) {
	w := &fakeWriter{}
	stop := runShipper(t, newTestShipper(w))
	time.Sleep(10 * time.Millisecond)
	stop()

	if !w.isClosed() {
		t.Error("writer not closed after Run returned")
	}
}

func TestShipper_ShutdownDuringRetry(t *testing.T) {
	w := &fakeWriter{failN: 1 << 20, failErr: errors.New("broker unreachable")}
	s := newTestShipper(w)
	stop := runShipper(t, s)

	s.Ship(makeOutput("sess-1"))
	time.Sleep(20 * time.Millisecond)
	stop()
}

func TestIsPermanentError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain", errors.New("dial tcp: refused"), false},
		{"leader not available", kafka.LeaderNotAvailable, false},
		{"wrapped auth failure", errors.Join(errors.New("write"), kafka.TopicAuthorizationFailed), true},
		{"message too large", kafka.MessageSizeTooLarge, true},
	}
	for _, tt := range tests {
		if got := isPermanentError(tt.err); got != tt.want {
			t.Errorf("%s: isPermanentError = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestBackoff_ResetsAndNeverExceedsMax(t *testing.T) {
	b := newBackoff()
	if first := b.next(); first > 2*time.Second {
		t.Errorf("first backoff too large: %v", first)
	}
	for i := 0; i < 50; i++ {
		// With jitter, max is backoffMax * 1.25
		if d := b.next(); d > backoffMax*2 {
			t.Errorf("backoff[%d] = %v, exceeds 2×max", i, d)
		}
	}
	b.reset()
	if after := b.next(); after > 2*time.Second {
		t.Errorf("backoff after reset too large: %v", after)
	}
}
