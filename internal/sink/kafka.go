package sink

import (
	"context"
	"io"
	"time"

	"github.com/okieraised/ahu-fdd/internal/fdd/runner"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// KafkaWriter is the part of *kafka.Writer that KafkaSink needs.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter returns a synchronous writer that waits for the leader ack.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

// KafkaSink writes one message per report, keyed by site so a site's
// reports stay ordered within a partition.
type KafkaSink struct {
	writer KafkaWriter
	now    func() time.Time
}

func NewKafkaSink(w KafkaWriter) *KafkaSink {
	return &KafkaSink{writer: w, now: time.Now}
}

func (s *KafkaSink) Publish(ctx context.Context, report *runner.Report) error {
	payload, err := FormatPayload(report, s.now())
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(report.SiteID),
		Value: payload,
		Time:  report.FinishedAt,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(report.RunID)},
			{Key: "event", Value: []byte(EventRunFinished)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, "write report to kafka")
	}
	return nil
}

func (s *KafkaSink) Close() error {
	if c, ok := s.writer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
