package sink

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/okieraised/ahu-fdd/internal/fdd/rules"
	"github.com/okieraised/ahu-fdd/internal/fdd/runner"
	"github.com/okieraised/ahu-fdd/internal/fdd/summary"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *runner.Report {
	ts := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	return &runner.Report{
		RunID:      "run-1",
		SiteID:     "site-a",
		StartedAt:  ts,
		FinishedAt: ts.Add(time.Second),
		Rows:       2,
		Outcomes: []runner.Outcome{
			{
				RuleID: "fc1",
				Status: runner.StatusEvaluated,
				Flag: &rules.FlagSeries{
					RuleID: "fc1",
					Name:   "fc1_flag",
					Index:  []time.Time{ts, ts.Add(time.Minute)},
					Values: []float64{0, 1},
				},
				Summary: &summary.FaultSummary{FlaggedSamples: 1},
			},
			{RuleID: "fc6", Status: runner.StatusSkipped, Code: "460003", Reason: "missing column mapping for roles: supply_air_volume"},
		},
	}
}

type fakeToken struct {
	err  error
	done chan struct{}
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type publishCall struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeMQTT struct {
	calls []publishCall
	token mqtt.Token
}

func (c *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.calls = append(c.calls, publishCall{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return c.token
}

func TestFormatPayload_StripsSeries(t *testing.T) {
	report := sampleReport()
	b, err := FormatPayload(report, time.Unix(0, 0))
	require.NoError(t, err)

	var msg struct {
		Event  string         `json:"event"`
		Report map[string]any `json:"report"`
	}
	require.NoError(t, json.Unmarshal(b, &msg))
	assert.Equal(t, EventRunFinished, msg.Event)
	outcomes := msg.Report["outcomes"].([]any)
	require.Len(t, outcomes, 2)
	assert.NotContains(t, outcomes[0].(map[string]any), "flag")
	assert.Contains(t, outcomes[0].(map[string]any), "summary")
	assert.NotNil(t, report.Outcomes[0].Flag)

	_, err = FormatPayload(nil, time.Now())
	assert.Error(t, err)
}

func TestMQTTSink_Publish(t *testing.T) {
	client := &fakeMQTT{token: doneToken(nil)}
	s := NewMQTTSink(client, WithTopicPrefix("bldg/fdd"), WithQoS(2), WithRetained(true))

	require.NoError(t, s.Publish(context.Background(), sampleReport()))
	require.Len(t, client.calls, 1)
	assert.Equal(t, "bldg/fdd/site-a/report", client.calls[0].topic)
	assert.Equal(t, byte(2), client.calls[0].qos)
	assert.True(t, client.calls[0].retained)
	assert.Contains(t, string(client.calls[0].payload), `"run_id":"run-1"`)

	assert.Equal(t, "fdd/ahu/default/report", NewMQTTSink(client).Topic(""))
}

func TestMQTTSink_Errors(t *testing.T) {
	s := NewMQTTSink(&fakeMQTT{token: doneToken(errors.New("not connected"))})
	assert.ErrorContains(t, s.Publish(context.Background(), sampleReport()), "not connected")

	pending := &fakeToken{done: make(chan struct{})}
	s = NewMQTTSink(&fakeMQTT{token: pending}, WithPublishTimeout(10*time.Millisecond))
	assert.ErrorContains(t, s.Publish(context.Background(), sampleReport()), "timed out")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s = NewMQTTSink(&fakeMQTT{token: pending})
	assert.ErrorIs(t, s.Publish(ctx, sampleReport()), context.Canceled)
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSink_Publish(t *testing.T) {
	w := &fakeWriter{}
	s := NewKafkaSink(w)
	report := sampleReport()

	require.NoError(t, s.Publish(context.Background(), report))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "site-a", string(msg.Key))
	assert.Equal(t, report.FinishedAt, msg.Time)
	assert.Equal(t, "run_id", msg.Headers[0].Key)
	assert.Equal(t, "run-1", string(msg.Headers[0].Value))

	require.NoError(t, s.Close())
	assert.True(t, w.closed)

	w.err = errors.New("leader not available")
	assert.ErrorContains(t, s.Publish(context.Background(), report), "leader not available")
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092"}, "fdd.reports")
	assert.Equal(t, "fdd.reports", w.Topic)
	assert.Equal(t, kafka.RequireOne, w.RequiredAcks)
	assert.False(t, w.Async)
}

func TestMulti(t *testing.T) {
	ok := &FakePublisher{}
	bad := &FakePublisher{Err: errors.New("broker down")}
	m := Multi{ok, bad}

	err := m.Publish(context.Background(), sampleReport())
	assert.ErrorContains(t, err, "broker down")
	assert.Equal(t, 1, ok.Published())

	require.NoError(t, m.Close())
	assert.True(t, ok.Closed)
	assert.True(t, bad.Closed)
}
