package search

import (
	"context"
	"fmt"

	"github.com/headercal/headercal-server/internal/domain"
	"github.com/headercal/headercal-server/internal/store"
)

// Reindex rebuilds the index from every label in backend. It runs at
// startup when the index was recreated or its count disagrees with the
// store, since changes committed while the index was closed are lost.
func (s *SearchIndex) Reindex(ctx context.Context, backend store.Backend) (int, error) {
	var labels []*domain.RangeLabel
	err := backend.View(ctx, func(tx store.Tx) error {
		var err error
		labels, err = tx.ListLabels(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list labels: %w", err)
	}

	if err := s.Rebuild(); err != nil {
		return 0, err
	}

	docs := make([]*LabelDocument, len(labels))
	for i, label := range labels {
		docs[i] = LabelToDocument(label)
	}
	if err := s.IndexDocuments(docs); err != nil {
		return 0, fmt.Errorf("index labels: %w", err)
	}

	s.logger.Info("reindexed labels", "count", len(docs))
	return len(docs), nil
}

// EnsureSynced reindexes when the index and store disagree on the number
// of labels.
func (s *SearchIndex) EnsureSynced(ctx context.Context, backend store.Backend) error {
	var stored int
	err := backend.View(ctx, func(tx store.Tx) error {
		labels, err := tx.ListLabels(ctx)
		stored = len(labels)
		return err
	})
	if err != nil {
		return fmt.Errorf("count labels: %w", err)
	}

	indexed, err := s.DocumentCount()
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	if indexed == uint64(stored) {
		return nil
	}

	s.logger.Info("search index out of sync, reindexing", "indexed", indexed, "stored", stored)
	_, err = s.Reindex(ctx, backend)
	return err
}
