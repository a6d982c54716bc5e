package sink

import (
	"context"
	"sync"

	"github.com/okieraised/ahu-fdd/internal/fdd/runner"
)

// FakePublisher records published reports for test assertions.
type FakePublisher struct {
	mu      sync.Mutex
	Reports []*runner.Report
	Err     error
	Closed  bool
}

func (f *FakePublisher) Publish(_ context.Context, report *runner.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Reports = append(f.Reports, report)
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Published returns how many reports were recorded.
func (f *FakePublisher) Published() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Reports)
}
