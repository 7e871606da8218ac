package search

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/headercal/headercal-server/internal/domain"
)

// mappingVersion is stamped next to the index. An index written under a
// different mapping is dropped and rebuilt from the store.
const mappingVersion = "1"

// batchSize bounds one Bleve batch during a reindex.
const batchSize = 500

// SearchIndex is a Bleve index of range label titles. It is safe for
// concurrent use; Rebuild takes the lock exclusively.
type SearchIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	logger *slog.Logger
}

// Options configures the search index.
type Options struct {
	DataPath string       // Directory holding labels.bleve
	Logger   *slog.Logger // Defaults to a stderr text logger
}

// NewSearchIndex opens the label index under opts.DataPath, creating it
// when it is missing, unreadable, or stamped with another mapping version.
// A recreated index is empty until Reindex or EnsureSynced fills it.
func NewSearchIndex(opts Options) (*SearchIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	s := &SearchIndex{
		path:   filepath.Join(opts.DataPath, "labels.bleve"),
		logger: logger,
	}

	if reason := s.staleReason(filepath.Join(opts.DataPath, "labels.version")); reason == "" {
		index, err := bleve.Open(s.path)
		if err == nil {
			s.index = index
			logger.Info("opened label index", "path", s.path)
			return s, nil
		}
		logger.Warn("label index unreadable, recreating", "path", s.path, "error", err)
	} else if reason != "missing" {
		logger.Info("recreating label index", "reason", reason, "mapping_version", mappingVersion)
	}

	if err := s.create(); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(opts.DataPath, "labels.version"), []byte(mappingVersion), 0o644); err != nil {
		logger.Warn("failed to stamp label index version", "error", err)
	}
	return s, nil
}

// staleReason reports why the on-disk index cannot be reused, or "" when
// it can.
func (s *SearchIndex) staleReason(versionPath string) string {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return "missing"
	}
	stamp, err := os.ReadFile(versionPath)
	switch {
	case err != nil:
		return "unversioned"
	case string(stamp) != mappingVersion:
		return "mapping version " + string(stamp)
	}
	return ""
}

// create replaces whatever is at s.path with an empty index. Callers hold
// the write lock or own s exclusively.
func (s *SearchIndex) create() error {
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove old index: %w", err)
	}
	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	s.index = index
	s.logger.Info("created label index", "path", s.path)
	return nil
}

// Close closes the index and releases resources.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexDocument adds or replaces one document.
func (s *SearchIndex) IndexDocument(doc *LabelDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(doc.ID, doc.ToMap())
}

// IndexDocuments adds documents in batches of batchSize.
func (s *SearchIndex) IndexDocuments(docs []*LabelDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for chunk := range slices.Chunk(docs, batchSize) {
		batch := s.index.NewBatch()
		for _, doc := range chunk {
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch of %d: %w", len(chunk), err)
		}
	}
	return nil
}

// IndexLabel adds or replaces a label's document.
func (s *SearchIndex) IndexLabel(_ context.Context, label *domain.RangeLabel) error {
	return s.IndexDocument(LabelToDocument(label))
}

// DeleteLabel removes a label's document. Unknown ids are ignored.
func (s *SearchIndex) DeleteLabel(_ context.Context, labelID uint32) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(DocID(labelID))
}

// DocumentCount returns the number of indexed labels.
func (s *SearchIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops every document. Searches block until it returns.
func (s *SearchIndex) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	return s.create()
}
