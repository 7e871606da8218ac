package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/headercal/headercal-server/internal/domain"
	"github.com/headercal/headercal-server/internal/sse"
	"github.com/headercal/headercal-server/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowIndexer takes longer to index than to delete, so unordered workers
// would let a delete land before the write it follows.
type slowIndexer struct {
	mu   sync.Mutex
	docs map[uint32]string
	ops  []string
}

func (s *slowIndexer) IndexLabel(_ context.Context, l *domain.RangeLabel) error {
	time.Sleep(20 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[l.ID] = l.Title
	s.ops = append(s.ops, "index")
	return nil
}

func (s *slowIndexer) DeleteLabel(_ context.Context, id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	s.ops = append(s.ops, "delete")
	return nil
}

func TestIndexQueue_AppliesCommitsInOrder(t *testing.T) {
	indexer := &slowIndexer{docs: map[uint32]string{}}
	queue := store.NewIndexQueue(nil)
	queue.SetIndexer(indexer)

	label := &domain.RangeLabel{ID: 7, Title: "Trip"}

	var created store.ChangeLog
	created.Label(sse.OpCreated, label)
	created.Publish(store.NewNoopEmitter(), queue)

	var deleted store.ChangeLog
	deleted.Label(sse.OpDeleted, label)
	deleted.Publish(store.NewNoopEmitter(), queue)

	queue.Close()

	assert.Equal(t, []string{"index", "delete"}, indexer.ops)
	assert.Empty(t, indexer.docs, "delete of a just-created label leaves no document")
}

func TestIndexQueue_CloseIsIdempotent(t *testing.T) {
	queue := store.NewIndexQueue(nil)
	queue.Close()
	queue.Close()

	// Publishing after close drops the update instead of panicking.
	var changes store.ChangeLog
	changes.Label(sse.OpCreated, &domain.RangeLabel{ID: 1})
	require.NotPanics(t, func() { changes.Publish(nil, queue) })
}
