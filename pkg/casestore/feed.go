package casestore

import (
	"context"
	"sync"

	"github.com/safetyflow/icsr-triage/pkg/common/logger"
	"github.com/safetyflow/icsr-triage/pkg/common/models"
	"github.com/safetyflow/icsr-triage/pkg/dashboard"
)

// RowLister is the initial fetch behind the feed.
type RowLister interface {
	ListRows(ctx context.Context) ([]models.CaseRow, error)
}

// Feed caches the case rows and recomputes dashboard metrics whenever a
// change notification arrives. The last notification for an id wins; its
// columns are merged over the cached row.
type Feed struct {
	mu       sync.RWMutex
	rows     []models.CaseRow
	metrics  models.DashboardMetrics
	subs     map[int]chan models.DashboardMetrics
	nextSub  int
	observer func(models.DashboardMetrics)
}

func NewFeed(observer func(models.DashboardMetrics)) *Feed {
	return &Feed{
		metrics:  dashboard.Compute(nil),
		subs:     make(map[int]chan models.DashboardMetrics),
		observer: observer,
	}
}

// Load replaces the cache with a full fetch.
func (f *Feed) Load(ctx context.Context, src RowLister) error {
	rows, err := src.ListRows(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = rows
	f.publishLocked()
	return nil
}

// Apply merges one row notification. Unknown ids are prepended so the cache
// stays newest first.
func (f *Feed) Apply(row models.CaseRow) models.DashboardMetrics {
	id := row.ID()
	f.mu.Lock()
	defer f.mu.Unlock()

	if id == "" {
		return f.metrics
	}
	for i, existing := range f.rows {
		if existing.ID() != id {
			continue
		}
		merged := make(models.CaseRow, len(existing)+len(row))
		for k, v := range existing {
			merged[k] = v
		}
		for k, v := range row {
			merged[k] = v
		}
		f.rows[i] = merged
		f.publishLocked()
		return f.metrics
	}

	f.rows = append([]models.CaseRow{row}, f.rows...)
	f.publishLocked()
	return f.metrics
}

// Handle adapts Apply to the Kafka consumer.
func (f *Feed) Handle(ctx context.Context, event models.Event) error {
	if event.Type != EventCaseUpserted {
		return nil
	}
	m := f.Apply(models.CaseRow(event.Data))
	logger.Log.WithField("case_id", models.CaseRow(event.Data).ID()).
		WithField("total_cases", m.TotalCases).
		Debug("Case feed updated")
	return nil
}

func (f *Feed) Rows() []models.CaseRow {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]models.CaseRow, len(f.rows))
	copy(out, f.rows)
	return out
}

func (f *Feed) Metrics() models.DashboardMetrics {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.metrics
}

// Subscribe returns a channel that receives the metrics after every change,
// starting with the current value. Slow subscribers only see the latest
// value. The returned func unsubscribes and closes the channel.
func (f *Feed) Subscribe() (<-chan models.DashboardMetrics, func()) {
	ch := make(chan models.DashboardMetrics, 1)

	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = ch
	ch <- f.metrics
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *Feed) publishLocked() {
	f.metrics = dashboard.Compute(f.rows)
	if f.observer != nil {
		f.observer(f.metrics)
	}
	for _, ch := range f.subs {
		select {
		case ch <- f.metrics:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- f.metrics:
			default:
			}
		}
	}
}
