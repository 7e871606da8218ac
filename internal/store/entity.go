package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Entity provides typed CRUD for one table inside a caller-owned badger
// transaction.
type Entity[T any] struct {
	prefix  string
	indexes []Index[T]
}

// Index defines a secondary index on an entity.
//
// A unique index stores prefix+"idx:"+name+":"+value -> id. A non-unique
// index stores prefix+"idx:"+name+":"+value+":"+id with an empty value, so
// all rows sharing a value are found with one prefix scan.
type Index[T any] struct {
	name            string
	keyGen          func(*T) []string
	lookupTransform func(string) string
	unique          bool
}

// NewEntity creates a new Entity instance for type T.
func NewEntity[T any](prefix string) *Entity[T] {
	return &Entity[T]{
		prefix:  prefix,
		indexes: make([]Index[T], 0),
	}
}

// WithIndex adds a unique secondary index.
func (e *Entity[T]) WithIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{
		name:   name,
		keyGen: keyGen,
		unique: true,
	})
	return e
}

// WithIndexTransform adds a unique secondary index whose lookups are
// passed through lookupTransform first.
func (e *Entity[T]) WithIndexTransform(name string, keyGen func(*T) []string, lookupTransform func(string) string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{
		name:            name,
		keyGen:          keyGen,
		lookupTransform: lookupTransform,
		unique:          true,
	})
	return e
}

// WithMultiIndex adds a non-unique secondary index for Scan and Count.
// Composite indexes encode every column into the generated value.
func (e *Entity[T]) WithMultiIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{
		name:   name,
		keyGen: keyGen,
	})
	return e
}

func (e *Entity[T]) index(name string) (*Index[T], error) {
	for i := range e.indexes {
		if e.indexes[i].name == name {
			return &e.indexes[i], nil
		}
	}
	return nil, fmt.Errorf("entity %s has no index %q", e.prefix, name)
}

// entryKey is the key written for one value of an index.
func (e *Entity[T]) entryKey(idx *Index[T], value, id string) []byte {
	if idx.unique {
		return buildIndexKey(e.prefix, idx.name, value)
	}
	return buildIndexKey(e.prefix, idx.name, value+":"+id)
}

func (e *Entity[T]) entryValue(idx *Index[T], id string) []byte {
	if idx.unique {
		return []byte(id)
	}
	return nil
}

func (e *Entity[T]) setIndexes(txn *badger.Txn, id string, entity *T) error {
	for i := range e.indexes {
		idx := &e.indexes[i]
		for _, value := range idx.keyGen(entity) {
			key := e.entryKey(idx, value, id)
			// badger keeps the slice until commit, so it must not be pooled.
			owned := append([]byte(nil), key...)
			releaseKey(key)
			if err := txn.Set(owned, e.entryValue(idx, id)); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
	}
	return nil
}

func (e *Entity[T]) deleteIndexes(txn *badger.Txn, id string, entity *T) error {
	for i := range e.indexes {
		idx := &e.indexes[i]
		for _, value := range idx.keyGen(entity) {
			key := e.entryKey(idx, value, id)
			owned := append([]byte(nil), key...)
			releaseKey(key)
			if err := txn.Delete(owned); err != nil {
				return fmt.Errorf("failed to delete index key: %w", err)
			}
		}
	}
	return nil
}

// checkUnique fails if a unique index value is already taken by another
// row. Values in skip belong to the row being rewritten.
func (e *Entity[T]) checkUnique(txn *badger.Txn, entity *T, skip *T) error {
	for i := range e.indexes {
		idx := &e.indexes[i]
		if !idx.unique {
			continue
		}

		old := make(map[string]bool)
		if skip != nil {
			for _, v := range idx.keyGen(skip) {
				old[v] = true
			}
		}

		for _, value := range idx.keyGen(entity) {
			if old[value] {
				continue
			}
			key := e.entryKey(idx, value, "")
			_, err := txn.Get(key)
			releaseKey(key)
			if err == nil {
				return fmt.Errorf("index %s conflict on key %s: %w", idx.name, value, ErrAlreadyExists)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("failed to check index key: %w", err)
			}
		}
	}
	return nil
}

func (e *Entity[T]) read(txn *badger.Txn, id string) (*T, error) {
	item, err := txn.Get([]byte(e.prefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	var entity T
	err = item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, &entity); err != nil {
			return fmt.Errorf("failed to unmarshal entity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// Create writes a new row. Returns ErrAlreadyExists if the id or a unique
// index value is taken.
func (e *Entity[T]) Create(ctx context.Context, txn *badger.Txn, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	key := []byte(e.prefix + id)
	if _, err := txn.Get(key); err == nil {
		return ErrAlreadyExists
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("failed to check existing key: %w", err)
	}

	if err := e.checkUnique(txn, entity, nil); err != nil {
		return err
	}

	if err := txn.Set(key, data); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return e.setIndexes(txn, id, entity)
}

// Get retrieves a row by id. Returns ErrNotFound if it does not exist.
func (e *Entity[T]) Get(ctx context.Context, txn *badger.Txn, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.read(txn, id)
}

// GetByIndex retrieves a row through a unique index.
func (e *Entity[T]) GetByIndex(ctx context.Context, txn *badger.Txn, indexName, value string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx, err := e.index(indexName)
	if err != nil {
		return nil, err
	}
	if !idx.unique {
		return nil, fmt.Errorf("index %q is not unique", indexName)
	}
	if idx.lookupTransform != nil {
		value = idx.lookupTransform(value)
	}

	key := e.entryKey(idx, value, "")
	defer releaseKey(key)
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	id, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return e.read(txn, string(id))
}

// Update rewrites an existing row and moves its index entries.
// Returns ErrNotFound if the row does not exist.
func (e *Entity[T]) Update(ctx context.Context, txn *badger.Txn, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	old, err := e.read(txn, id)
	if err != nil {
		return err
	}

	if err := e.checkUnique(txn, entity, old); err != nil {
		return err
	}
	if err := e.deleteIndexes(txn, id, old); err != nil {
		return err
	}
	if err := txn.Set([]byte(e.prefix+id), data); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return e.setIndexes(txn, id, entity)
}

// Delete removes a row and its index entries, returning the removed row.
// Deleting a missing row is not an error and returns nil.
func (e *Entity[T]) Delete(ctx context.Context, txn *badger.Txn, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	old, err := e.read(txn, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := e.deleteIndexes(txn, id, old); err != nil {
		return nil, err
	}
	if err := txn.Delete([]byte(e.prefix + id)); err != nil {
		return nil, fmt.Errorf("failed to delete key: %w", err)
	}
	return old, nil
}

// List returns an iterator over all rows in key order.
func (e *Entity[T]) List(ctx context.Context, txn *badger.Txn) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		prefix := []byte(e.prefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			key := string(it.Item().Key())
			if strings.HasPrefix(key[len(e.prefix):], "idx:") {
				continue
			}

			var entity T
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entity)
			})
			if err != nil {
				yield(nil, err)
				return
			}

			if !yield(&entity, nil) {
				return
			}
		}
	}
}

// scanIDs yields the ids stored under one value of a non-unique index.
// Values are not fetched.
func (e *Entity[T]) scanIDs(ctx context.Context, txn *badger.Txn, indexName, value string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		idx, err := e.index(indexName)
		if err != nil {
			yield("", err)
			return
		}
		if idx.unique {
			yield("", fmt.Errorf("index %q is unique, use GetByIndex", indexName))
			return
		}

		key := e.entryKey(idx, value, "")
		prefix := append([]byte(nil), key...)
		releaseKey(key)

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(string(it.Item().Key()[len(prefix):]), nil) {
				return
			}
		}
	}
}

// Scan returns the rows sharing one value of a non-unique index.
func (e *Entity[T]) Scan(ctx context.Context, txn *badger.Txn, indexName, value string) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		for id, err := range e.scanIDs(ctx, txn, indexName, value) {
			if err != nil {
				yield(nil, err)
				return
			}
			entity, err := e.read(txn, id)
			if err != nil {
				yield(nil, fmt.Errorf("index %s points at %s: %w", indexName, id, err))
				return
			}
			if !yield(entity, nil) {
				return
			}
		}
	}
}

// Count returns how many rows share one value of a non-unique index,
// iterating keys only.
func (e *Entity[T]) Count(ctx context.Context, txn *badger.Txn, indexName, value string) (int, error) {
	n := 0
	for _, err := range e.scanIDs(ctx, txn, indexName, value) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// collect drains an iterator into a slice.
func collect[T any](seq iter.Seq2[*T, error]) ([]*T, error) {
	var out []*T
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
