// Package auditpipe assembles the audit publisher for a tier: the structured
// log sink always, plus the Kafka sink when brokers are configured.
package auditpipe

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"chequeverify/internal/platform/config"
	"chequeverify/pkg/platform/audit/publisher"
	"chequeverify/pkg/platform/audit/publishers/kafka"
)

type Pipeline struct {
	Publisher *publisher.Publisher
	sink      *kafka.Sink
	client    *kgo.Client
}

// New builds the pipeline. Topic creation failures are logged and tolerated:
// the sink buffers until the broker is reachable.
func New(ctx context.Context, service string, cfg config.Kafka, logger *slog.Logger, reg prometheus.Registerer) (*Pipeline, error) {
	opts := []publisher.Option{
		publisher.WithSink("log", publisher.NewLogSink(logger)),
		publisher.WithMetrics(publisher.NewMetrics(reg)),
	}

	p := &Pipeline{}
	if cfg.Enabled() {
		client, err := kafka.NewClient(cfg.Brokers, cfg.ClientID)
		if err != nil {
			return nil, err
		}
		p.client = client
		p.sink = kafka.NewSink(client, kafka.Config{TopicPrefix: cfg.TopicPrefix}, logger)

		if err := kafka.EnsureTopics(ctx, kadm.NewClient(client), cfg.Partitions, cfg.ReplicationFactor, p.sink.Topics()...); err != nil {
			logger.WarnContext(ctx, "audit topics not ensured", "error", err)
		}
		opts = append(opts, publisher.WithSink("kafka", p.sink))
		logger.InfoContext(ctx, "audit kafka sink enabled", "topics", p.sink.Topics())
	}

	p.Publisher = publisher.New(service, logger, opts...)
	return p, nil
}

// Run drives the Kafka sink until ctx is cancelled. Without Kafka it just
// waits for ctx.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.sink == nil {
		<-ctx.Done()
		return nil
	}
	return p.sink.Run(ctx)
}

// Close releases the Kafka client. Call after Run has returned.
func (p *Pipeline) Close() {
	if p.client != nil {
		p.client.Close()
	}
}
