package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/headercal/headercal-server/internal/domain"
)

// sequenceBandwidth is how many ids a badger sequence leases per disk write.
const sequenceBandwidth = 100

// Store is the badger-backed Backend.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// Event emitter for broadcasting committed changes.
	eventEmitter EventEmitter

	// Label search updates. The indexer is set via SetSearchIndexer after
	// store creation to avoid circular dependencies.
	searchQueue *IndexQueue

	// writeMu serializes read-write transactions so that an entry point's
	// read-then-write pass never races another writer.
	writeMu sync.Mutex

	seqMu     sync.Mutex
	sequences map[string]*badger.Sequence

	identities   *Entity[domain.Identity]
	users        *Entity[domain.User]
	labels       *Entity[domain.RangeLabel]
	availability *Entity[domain.RangeAvailability]
}

var _ Backend = (*Store)(nil)

// New opens (or creates) a badger database at path.
func New(path string, logger *slog.Logger, emitter EventEmitter) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if emitter == nil {
		emitter = NewNoopEmitter()
	}

	s := &Store{
		db:           db,
		logger:       logger,
		eventEmitter: emitter,
		searchQueue:  NewIndexQueue(logger),
		sequences:    make(map[string]*badger.Sequence),
	}
	s.initEntities()

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return s, nil
}

func (s *Store) initEntities() {
	s.identities = NewEntity[domain.Identity](identityPrefix).
		WithMultiIndex("user", func(i *domain.Identity) []string {
			return []string{formatID(i.UserID)}
		}).
		WithMultiIndex("online_user", func(i *domain.Identity) []string {
			return []string{onlineUserKey(i.Online, i.UserID)}
		})

	s.users = NewEntity[domain.User](userPrefix)

	s.labels = NewEntity[domain.RangeLabel](labelPrefix).
		WithMultiIndex("creator", func(l *domain.RangeLabel) []string {
			return []string{formatID(l.CreatorUserID)}
		})

	s.availability = NewEntity[domain.RangeAvailability](availabilityPrefix).
		WithMultiIndex("creator", func(a *domain.RangeAvailability) []string {
			return []string{formatID(a.CreatorUserID)}
		})
}

// Close releases id sequences and closes the database.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}

	s.seqMu.Lock()
	for name, seq := range s.sequences {
		if err := seq.Release(); err != nil && s.logger != nil {
			s.logger.Warn("failed to release sequence", "sequence", name, "error", err)
		}
	}
	s.sequences = map[string]*badger.Sequence{}
	s.seqMu.Unlock()

	s.searchQueue.Close()
	return s.db.Close()
}

// SetSearchIndexer sets the search indexer for keeping search in sync.
func (s *Store) SetSearchIndexer(indexer SearchIndexer) {
	s.searchQueue.SetIndexer(indexer)
}

// DB exposes the underlying database for read-only tooling.
func (s *Store) DB() *badger.DB {
	return s.db
}

// Update implements Backend.
func (s *Store) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var changes ChangeLog
	err := s.db.Update(func(txn *badger.Txn) error {
		return fn(&tx{store: s, txn: txn, changes: &changes})
	})
	if err != nil {
		return err
	}

	changes.Publish(s.eventEmitter, s.searchQueue)
	return nil
}

// View implements Backend.
func (s *Store) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&tx{store: s, txn: txn, readOnly: true})
	})
}

// nextID leases the next id of a table's sequence. Ids start at 1 and are
// never handed out twice, even when the transaction that took one rolls
// back.
func (s *Store) nextID(table string) (uint32, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	seq, ok := s.sequences[table]
	if !ok {
		var err error
		seq, err = s.db.GetSequence([]byte(sequencePrefix+table), sequenceBandwidth)
		if err != nil {
			return 0, fmt.Errorf("open %s sequence: %w", table, err)
		}
		s.sequences[table] = seq
	}

	for {
		n, err := seq.Next()
		if err != nil {
			return 0, fmt.Errorf("next %s id: %w", table, err)
		}
		if n == 0 {
			continue
		}
		if n > uint64(^uint32(0)) {
			return 0, fmt.Errorf("%s id space exhausted", table)
		}
		return uint32(n), nil
	}
}
