// Package main provides a read-only inspector for a badger calendar
// database. It counts rows per table and reports users whose stored
// presence or availability rows break the store's invariants.
//
// Usage:
//
//	DB_PATH=~/headercal/db go run ./cmd/dbinspect
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/headercal/headercal-server/internal/availability"
	"github.com/headercal/headercal-server/internal/domain"
)

// scan decodes every row under prefix, skipping index entries.
func scan[T any](db *badger.DB, prefix string) ([]T, error) {
	var rows []T
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if strings.HasPrefix(string(item.Key()), prefix+"idx:") {
				continue
			}
			err := item.Value(func(val []byte) error {
				var row T
				if err := json.Unmarshal(val, &row); err != nil {
					return err
				}
				rows = append(rows, row)
				return nil
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}
		}
		return nil
	})
	return rows, err
}

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/headercal/db")
	}

	opts := badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	users, err := scan[domain.User](db, "user:")
	if err != nil {
		log.Fatalf("Error reading users: %v", err)
	}
	identities, err := scan[domain.Identity](db, "identity:")
	if err != nil {
		log.Fatalf("Error reading identities: %v", err)
	}
	labels, err := scan[domain.RangeLabel](db, "label:")
	if err != nil {
		log.Fatalf("Error reading labels: %v", err)
	}
	rows, err := scan[domain.RangeAvailability](db, "avail:")
	if err != nil {
		log.Fatalf("Error reading availability: %v", err)
	}

	fmt.Println("=== Database Inspection ===")
	fmt.Println()

	onlineByUser := map[uint32]int{}
	bound, online := 0, 0
	for _, ident := range identities {
		if ident.Bound() {
			bound++
		}
		if ident.Online {
			online++
			if ident.Bound() {
				onlineByUser[ident.UserID]++
			}
		}
	}

	rowsByUser := map[uint32][]domain.RangeAvailability{}
	for _, r := range rows {
		rowsByUser[r.CreatorUserID] = append(rowsByUser[r.CreatorUserID], r)
	}

	problems := 0
	for _, u := range users {
		if want := onlineByUser[u.ID] > 0; u.Online != want {
			problems++
			fmt.Printf("User %d (%s): online=%t but %d online identities\n",
				u.ID, u.Username, u.Online, onlineByUser[u.ID])
		}

		if err := availability.CheckDisjoint(rowsByUser[u.ID]); err != nil {
			problems++
			var overlap *availability.OverlapError
			if errors.As(err, &overlap) {
				fmt.Printf("User %d (%s): availability rows %d and %d overlap\n",
					u.ID, u.Username, overlap.First, overlap.Second)
			} else {
				fmt.Printf("User %d (%s): %v\n", u.ID, u.Username, err)
			}
		}
	}

	fmt.Println("=== Summary ===")
	fmt.Printf("Users: %d\n", len(users))
	fmt.Printf("Identities: %d (%d signed in, %d online)\n", len(identities), bound, online)
	fmt.Printf("Range labels: %d\n", len(labels))
	fmt.Printf("Availability rows: %d\n", len(rows))
	fmt.Printf("Problems: %d\n", problems)

	if problems > 0 {
		os.Exit(1)
	}
}
