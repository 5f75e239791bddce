package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fd1az/fee-advisor/internal/logger"
)

// MessageWriter is the subset of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the sink's writer.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// NewKafkaWriter builds a kafka-go writer keyed by provider for partitioning.
func NewKafkaWriter(cfg KafkaConfig) *kafka.Writer {
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: timeout,
	}
}

// KafkaSink forwards bus events to a topic as JSON. Write failures are
// logged and dropped.
type KafkaSink struct {
	writer MessageWriter
	log    logger.LoggerInterface
}

// NewKafkaSink wraps writer.
func NewKafkaSink(writer MessageWriter, log logger.LoggerInterface) *KafkaSink {
	return &KafkaSink{writer: writer, log: log}
}

type wireEvent struct {
	Event
	Error string `json:"error,omitempty"`
}

// Run drains the subscription until ctx is done or the channel closes.
func (s *KafkaSink) Run(ctx context.Context, sub <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			s.forward(ctx, e)
		}
	}
}

func (s *KafkaSink) forward(ctx context.Context, e Event) {
	w := wireEvent{Event: e}
	if e.Err != nil {
		w.Error = e.Err.Error()
	}
	data, err := json.Marshal(w)
	if err != nil {
		s.log.Warn(ctx, "event encode failed", "kind", e.Kind, "error", err)
		return
	}

	key := e.Provider
	if key == "" {
		key = string(e.Kind)
	}
	if err := s.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data, Time: e.At}); err != nil {
		s.log.Warn(ctx, "event publish failed", "kind", e.Kind, "error", err)
	}
}

// Close closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
