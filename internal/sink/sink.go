// Package sink publishes fault detection reports to message brokers.
package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/okieraised/ahu-fdd/internal/fdd/runner"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Publisher sends a finished report somewhere. Implementations must not
// mutate the report.
type Publisher interface {
	Publish(ctx context.Context, report *runner.Report) error
	Close() error
}

// Message is the broker payload: the report with flag series stripped.
type Message struct {
	Event       string         `json:"event"`
	PublishedAt time.Time      `json:"published_at"`
	Report      *runner.Report `json:"report"`
}

const EventRunFinished = "FDD_RUN_FINISHED"

// FormatPayload renders the JSON payload for report.
func FormatPayload(report *runner.Report, now time.Time) ([]byte, error) {
	if report == nil {
		return nil, errors.New("nil report")
	}
	b, err := json.Marshal(Message{
		Event:       EventRunFinished,
		PublishedAt: now.UTC(),
		Report:      report.WithoutSeries(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode report payload")
	}
	return b, nil
}

// Multi fans a report out to every publisher. All publishers are tried and
// their errors are combined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, report *runner.Report) error {
	var err error
	for _, p := range m {
		err = multierr.Append(err, p.Publish(ctx, report))
	}
	return err
}

func (m Multi) Close() error {
	var err error
	for _, p := range m {
		err = multierr.Append(err, p.Close())
	}
	return err
}
