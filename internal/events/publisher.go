// Package events mirrors gateway emissions onto a Kafka topic for downstream
// consumers (notification pipeline, analytics). The mirror is optional and
// strictly fire-and-forget: it never blocks or fails the request path.
package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Publisher struct {
	writer *kafkago.Writer
	log    *zap.SugaredLogger
}

// NewPublisher returns nil when no brokers are configured; a nil Publisher
// is a no-op.
func NewPublisher(brokers []string, topic string, log *zap.SugaredLogger) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
		Async:        true,
	}
	return &Publisher{writer: w, log: log}
}

// Publish mirrors one emission, keyed by its broadcast channel so one room's
// events stay ordered within a partition.
func (p *Publisher) Publish(ctx context.Context, channel string, data any) {
	if p == nil {
		return
	}
	b, err := json.Marshal(data)
	if err != nil {
		p.log.Errorw("marshal event", "channel", channel, "err", err)
		return
	}
	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(channel),
		Value: b,
		Time:  time.Now(),
	})
	if err != nil {
		p.log.Warnw("mirror emission", "channel", channel, "err", err)
	}
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
