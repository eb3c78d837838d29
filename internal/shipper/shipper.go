package shipper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/draftpace/draftpace/internal/compute"
	"github.com/draftpace/draftpace/internal/config"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second
	batchTimeout      = 50 * time.Millisecond
)

// messageWriter is the part of *kafka.Writer the shipper uses.
// Abstracted so tests can capture messages without a broker.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Shipper buffers engine Outputs and publishes them to a Kafka topic.
// Ship() is non-blocking; when the buffer is full the oldest Output is evicted.
// Run() must be called in a goroutine to drain the buffer.
type Shipper struct {
	cfg    config.KafkaConfig
	buf    chan compute.Output
	writer messageWriter
	bo     *backoff
}

// New creates a Shipper publishing to cfg.Topic on cfg.Brokers.
// Messages are keyed by session id, so one session stays on one partition.
func New(cfg config.KafkaConfig) *Shipper {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: batchTimeout,
	}
	return newWithWriter(cfg, w)
}

func newWithWriter(cfg config.KafkaConfig, w messageWriter) *Shipper {
	return &Shipper{
		cfg:    cfg,
		buf:    make(chan compute.Output, cfg.BufferSize),
		writer: w,
		bo:     newBackoff(),
	}
}

// Ship enqueues out for publishing. It has the scheduler.Sink signature.
// If the buffer is full the oldest entry is evicted to make room.
func (s *Shipper) Ship(out compute.Output) {
	for {
		select {
		case s.buf <- out:
			return
		default:
		}
		select {
		case <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest output",
				"session", out.SessionID, "buffer_cap", cap(s.buf))
		default:
		}
	}
}

// Run drains the buffer and publishes each Output. A failed write is retried
// with exponential backoff until it succeeds, fails permanently, or ctx is
// cancelled. Run closes the writer before returning.
func (s *Shipper) Run(ctx context.Context) {
	defer func() {
		if err := s.writer.Close(); err != nil {
			slog.Warn("shipper: close writer", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case out := <-s.buf:
			msg, err := toMessage(out)
			if err != nil {
				slog.Error("shipper: encode output, discarding", "session", out.SessionID, "err", err)
				continue
			}
			if !s.deliver(ctx, msg) {
				return
			}
		}
	}
}

// deliver writes msg, retrying transient failures. It returns false when ctx
// was cancelled before the message could be written.
func (s *Shipper) deliver(ctx context.Context, msg kafka.Message) bool {
	for {
		err := s.write(ctx, msg)
		if err == nil {
			s.bo.reset()
			slog.Debug("shipper: output delivered", "topic", s.cfg.Topic, "key", string(msg.Key))
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		if isPermanentError(err) {
			slog.Error("shipper: permanent write error, discarding output",
				"key", string(msg.Key), "err", err)
			return true
		}

		wait := s.bo.next()
		slog.Warn("shipper: write failed, will retry",
			"brokers", s.cfg.Brokers,
			"err", err,
			"retry_in", wait)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

func (s *Shipper) write(ctx context.Context, msg kafka.Message) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := s.writer.WriteMessages(sendCtx, msg); err != nil {
		return fmt.Errorf("shipper: write: %w", err)
	}
	return nil
}

// isPermanentError returns true for broker errors that will not succeed on
// retry, such as an oversized message or a topic the client may not write.
func isPermanentError(err error) bool {
	var kerr kafka.Error
	if errors.As(err, &kerr) {
		return !kerr.Temporary()
	}
	return false
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{initial: backoffInitial, max: backoffMax, current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// Apply ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

func (b *backoff) reset() {
	b.current = b.initial
}
