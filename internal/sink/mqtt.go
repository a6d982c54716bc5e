package sink

import (
	"context"
	"path"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/okieraised/ahu-fdd/internal/fdd/runner"
	"github.com/pkg/errors"
)

// DefaultMQTTTopicPrefix is used when MQTTSink has no prefix configured.
const DefaultMQTTTopicPrefix = "fdd/ahu"

// MQTTClient is the part of mqtt.Client that MQTTSink needs.
type MQTTClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes each report to <prefix>/<site>/report.
type MQTTSink struct {
	client   MQTTClient
	prefix   string
	qos      byte
	retained bool
	timeout  time.Duration
	now      func() time.Time
}

type MQTTOption func(*MQTTSink)

func WithTopicPrefix(prefix string) MQTTOption {
	return func(s *MQTTSink) { s.prefix = prefix }
}

func WithQoS(qos byte) MQTTOption {
	return func(s *MQTTSink) { s.qos = qos }
}

func WithRetained(v bool) MQTTOption {
	return func(s *MQTTSink) { s.retained = v }
}

func WithPublishTimeout(d time.Duration) MQTTOption {
	return func(s *MQTTSink) { s.timeout = d }
}

func NewMQTTSink(client MQTTClient, opts ...MQTTOption) *MQTTSink {
	s := &MQTTSink{
		client:  client,
		prefix:  DefaultMQTTTopicPrefix,
		qos:     1,
		timeout: 10 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Topic returns the topic a report for site is published on.
func (s *MQTTSink) Topic(site string) string {
	if site == "" {
		site = "default"
	}
	return path.Join(s.prefix, site, "report")
}

func (s *MQTTSink) Publish(ctx context.Context, report *runner.Report) error {
	payload, err := FormatPayload(report, s.now())
	if err != nil {
		return err
	}
	topic := s.Topic(report.SiteID)
	tok := s.client.Publish(topic, s.qos, s.retained, payload)

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "publish %s", topic)
	case <-timer.C:
		return errors.Errorf("publish %s: timed out after %s", topic, s.timeout)
	}
	if err := tok.Error(); err != nil {
		return errors.Wrapf(err, "publish %s", topic)
	}
	return nil
}

// Close is a no-op: the client is shared and owned by the caller.
func (s *MQTTSink) Close() error { return nil }
