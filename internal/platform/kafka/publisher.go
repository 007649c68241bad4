package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/storepay/pkg/config"
	"github.com/fatflowers/storepay/pkg/logctx"
)

// Publisher delivers payment events. Publishing is best-effort: callers log failures and move on.
type Publisher interface {
	PublishStatusChanged(ctx context.Context, event TransactionStatusChanged) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 5 * time.Second,
		},
	}
}

// messageFor keys by order ref so every event of one order lands on one partition, in order.
func messageFor(event TransactionStatusChanged) (kafka.Message, error) {
	if event.Event == "" {
		event.Event = EventTransactionStatusChanged
	}
	v, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(event.OrderRef),
		Value: v,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event.Event)},
		},
	}, nil
}

func (k *KafkaPublisher) PublishStatusChanged(ctx context.Context, event TransactionStatusChanged) error {
	msg, err := messageFor(event)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, msg)
}

func (k *KafkaPublisher) Close() error { return k.writer.Close() }

// LogPublisher writes events to the log when no broker is configured.
type LogPublisher struct {
	log *zap.SugaredLogger
}

func NewLogPublisher(l *zap.SugaredLogger) *LogPublisher {
	return &LogPublisher{log: l}
}

func (p *LogPublisher) PublishStatusChanged(ctx context.Context, event TransactionStatusChanged) error {
	logctx.FromCtx(ctx, p.log).Infow("payment_event",
		"event", EventTransactionStatusChanged,
		"transaction_id", event.TransactionID,
		"order_ref", event.OrderRef,
		"status", event.Status,
		"previous_status", event.PreviousStatus,
		"source", event.Source,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

func NewPublisher(cfg *config.Config, l *zap.SugaredLogger) Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		l.Infow("kafka brokers not configured, payment events go to the log")
		return NewLogPublisher(l)
	}
	l.Infow("kafka publisher configured", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	return NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
}

func registerClose(lc fx.Lifecycle, p Publisher) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return p.Close() },
	})
}

var Module = fx.Options(
	fx.Provide(NewPublisher),
	fx.Invoke(registerClose),
)
