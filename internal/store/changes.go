package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/headercal/headercal-server/internal/domain"
	"github.com/headercal/headercal-server/internal/sse"
)

// EventEmitter is the interface for emitting change events.
// Store uses this to broadcast changes without depending on transport details.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter is a no-op implementation of EventEmitter for testing.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ any) {}

// NewNoopEmitter creates a new no-op emitter for testing.
func NewNoopEmitter() EventEmitter {
	return NoopEmitter{}
}

// SearchIndexer keeps the label search index in sync with committed
// changes. Updates run asynchronously after commit.
type SearchIndexer interface {
	IndexLabel(ctx context.Context, label *domain.RangeLabel) error
	DeleteLabel(ctx context.Context, labelID uint32) error
}

// NoopSearchIndexer is a no-op implementation for testing.
type NoopSearchIndexer struct{}

// IndexLabel is a no-op.
func (NoopSearchIndexer) IndexLabel(context.Context, *domain.RangeLabel) error { return nil }

// DeleteLabel is a no-op.
func (NoopSearchIndexer) DeleteLabel(context.Context, uint32) error { return nil }

// NewNoopSearchIndexer creates a new no-op search indexer for testing.
func NewNoopSearchIndexer() SearchIndexer {
	return NoopSearchIndexer{}
}

// ChangeLog records the row changes made by one transaction so they can be
// published once it commits. A rolled back transaction discards its log.
type ChangeLog struct {
	events        []sse.Event
	indexLabels   []*domain.RangeLabel
	unindexLabels []uint32
}

// Identity records an identity change.
func (c *ChangeLog) Identity(op string, i *domain.Identity) {
	cp := *i
	c.events = append(c.events, sse.NewIdentityEvent(op, &cp))
}

// User records a user change.
func (c *ChangeLog) User(op string, u *domain.User) {
	cp := *u
	c.events = append(c.events, sse.NewUserEvent(op, &cp))
}

// Label records a range label change.
func (c *ChangeLog) Label(op string, l *domain.RangeLabel) {
	cp := *l
	c.events = append(c.events, sse.NewLabelEvent(op, &cp))
	if op == sse.OpDeleted {
		c.unindexLabels = append(c.unindexLabels, l.ID)
	} else {
		c.indexLabels = append(c.indexLabels, &cp)
	}
}

// Availability records a range availability change.
func (c *ChangeLog) Availability(op string, a *domain.RangeAvailability) {
	cp := *a
	c.events = append(c.events, sse.NewAvailabilityEvent(op, &cp))
}

// Len returns the number of recorded changes.
func (c *ChangeLog) Len() int {
	return len(c.events)
}

// Publish emits every recorded change in order and queues label changes
// for the search index.
func (c *ChangeLog) Publish(emitter EventEmitter, queue *IndexQueue) {
	if emitter != nil {
		for _, e := range c.events {
			emitter.Emit(e)
		}
	}

	if queue != nil && (len(c.indexLabels) > 0 || len(c.unindexLabels) > 0) {
		queue.enqueue(c.indexLabels, c.unindexLabels)
	}
}

type indexBatch struct {
	indexer SearchIndexer
	index   []*domain.RangeLabel
	unindex []uint32
}

// IndexQueue applies search index updates on a single worker, one commit
// at a time in commit order, so a delete never overtakes the write it
// follows.
type IndexQueue struct {
	mu      sync.RWMutex
	indexer SearchIndexer
	closed  bool

	jobs   chan indexBatch
	done   chan struct{}
	logger *slog.Logger
}

// NewIndexQueue starts the worker. Updates are dropped until an indexer is
// set.
func NewIndexQueue(logger *slog.Logger) *IndexQueue {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	q := &IndexQueue{
		indexer: NewNoopSearchIndexer(),
		jobs:    make(chan indexBatch, 256),
		done:    make(chan struct{}),
		logger:  logger,
	}
	go q.run()
	return q
}

// SetIndexer sets the indexer for batches queued from now on.
func (q *IndexQueue) SetIndexer(indexer SearchIndexer) {
	if indexer == nil {
		indexer = NewNoopSearchIndexer()
	}
	q.mu.Lock()
	q.indexer = indexer
	q.mu.Unlock()
}

func (q *IndexQueue) enqueue(index []*domain.RangeLabel, unindex []uint32) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	q.jobs <- indexBatch{indexer: q.indexer, index: index, unindex: unindex}
}

// Close stops accepting updates and waits for queued ones to finish.
func (q *IndexQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	<-q.done
}

func (q *IndexQueue) run() {
	defer close(q.done)

	ctx := context.Background()
	for batch := range q.jobs {
		for _, l := range batch.index {
			if err := batch.indexer.IndexLabel(ctx, l); err != nil {
				q.logger.Warn("failed to index label for search", "label_id", l.ID, "error", err)
			}
		}
		for _, id := range batch.unindex {
			if err := batch.indexer.DeleteLabel(ctx, id); err != nil {
				q.logger.Warn("failed to remove label from search", "label_id", id, "error", err)
			}
		}
	}
}
