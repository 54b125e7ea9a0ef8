// Package kafka ships audit events to Kafka topics.
//
// Write never blocks on the broker: events go into a bounded RingBuffer and a
// background loop produces them in batches. When the broker is unreachable a
// circuit breaker pauses produce attempts; the buffer keeps the newest events
// and drops the oldest.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "chequeverify/pkg/platform/audit"
	"chequeverify/pkg/platform/circuit"
)

const (
	DefaultBufferSize    = 10000
	DefaultBatchSize     = 100
	DefaultFlushInterval = time.Second
	produceTimeout       = 5 * time.Second
)

// Producer is the subset of *kgo.Client the sink needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Config configures the sink.
type Config struct {
	TopicPrefix   string // topics are <prefix>.<category>
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// Sink buffers audit events and produces them to Kafka.
type Sink struct {
	producer Producer
	cfg      Config
	buffer   *RingBuffer
	breaker  *circuit.Breaker
	logger   *slog.Logger
	wake     chan struct{}
}

// NewSink creates a sink; call Run to start producing.
func NewSink(producer Producer, cfg Config, logger *slog.Logger) *Sink {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "cheque.audit"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	return &Sink{
		producer: producer,
		cfg:      cfg,
		buffer:   NewRingBuffer(cfg.BufferSize),
		breaker:  circuit.New("audit-kafka", circuit.WithFailureThreshold(3), circuit.WithCooldown(30*time.Second)),
		logger:   logger,
		wake:     make(chan struct{}, 1),
	}
}

// Topic returns the topic for a category.
func (s *Sink) Topic(category audit.EventCategory) string {
	return s.cfg.TopicPrefix + "." + string(category)
}

// Topics lists every topic the sink can produce to.
func (s *Sink) Topics() []string {
	return []string{s.Topic(audit.CategorySecurity), s.Topic(audit.CategoryOperations)}
}

// Write enqueues the event. It never fails.
func (s *Sink) Write(_ context.Context, event audit.Event) error {
	s.buffer.Enqueue(event)
	if s.buffer.Len() >= s.cfg.BatchSize {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
	return nil
}

// Pending returns the number of buffered events.
func (s *Sink) Pending() int { return s.buffer.Len() }

// Dropped returns how many events were discarded because the buffer was full.
func (s *Sink) Dropped() int64 { return s.buffer.Dropped() }

// Run produces buffered events until ctx is cancelled, then makes a final
// bounded attempt to drain the buffer.
func (s *Sink) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), produceTimeout)
			defer cancel()
			for s.buffer.Len() > 0 {
				if err := s.Flush(drainCtx); err != nil {
					s.logger.Warn("audit drain incomplete", "pending", s.buffer.Len(), "error", err)
					break
				}
			}
			return nil
		case <-ticker.C:
		case <-s.wake:
		}
		if err := s.Flush(ctx); err != nil && !errors.Is(err, errCircuitOpen) {
			s.logger.Warn("audit produce failed", "pending", s.buffer.Len(), "error", err)
		}
	}
}

var errCircuitOpen = errors.New("audit kafka circuit open")

// Flush produces one batch. A failed batch is put back at the front of the buffer.
func (s *Sink) Flush(ctx context.Context) error {
	if !s.breaker.Allow() {
		return errCircuitOpen
	}
	batch := s.buffer.DequeueBatch(s.cfg.BatchSize)
	if len(batch) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(batch))
	for _, event := range batch {
		rec, err := s.record(event)
		if err != nil {
			s.logger.Warn("audit event dropped", "action", event.Action, "error", err)
			continue
		}
		records = append(records, rec)
	}

	produceCtx, cancel := context.WithTimeout(ctx, produceTimeout)
	defer cancel()
	if err := s.producer.ProduceSync(produceCtx, records...).FirstErr(); err != nil {
		s.buffer.Requeue(batch)
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.Error("audit kafka circuit opened", "error", err)
		}
		return fmt.Errorf("produce audit batch: %w", err)
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.Info("audit kafka circuit closed")
	}
	return nil
}

type message struct {
	Timestamp string `json:"timestamp"`
	Category  string `json:"category"`
	Service   string `json:"service"`
	Action    string `json:"action"`
	Outcome   string `json:"outcome,omitempty"`
	Reason    string `json:"reason,omitempty"`
	IP        string `json:"ip_prefix,omitempty"`
	Path      string `json:"path,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Severity  string `json:"severity"`
}

func (s *Sink) record(event audit.Event) (*kgo.Record, error) {
	value, err := json.Marshal(message{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		Category:  string(event.Category),
		Service:   event.Service,
		Action:    event.Action,
		Outcome:   event.Outcome,
		Reason:    event.Reason,
		IP:        event.IP,
		Path:      event.Path,
		RequestID: event.RequestID,
		Severity:  string(event.Severity),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal audit event: %w", err)
	}
	return &kgo.Record{
		Topic: s.Topic(event.Category),
		Key:   []byte(uuid.NewString()),
		Value: value,
	}, nil
}

// NewClient builds a franz-go client for the given seed brokers.
func NewClient(brokers []string, clientID string) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ProduceRequestTimeout(produceTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// EnsureTopics creates the topics if they do not exist yet.
func EnsureTopics(ctx context.Context, admin *kadm.Client, partitions int32, replicationFactor int16, topics ...string) error {
	resps, err := admin.CreateTopics(ctx, partitions, replicationFactor, nil, topics...)
	if err != nil {
		return fmt.Errorf("create audit topics: %w", err)
	}
	for _, r := range resps.Sorted() {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}
