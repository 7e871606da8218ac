// Package main seeds a calendar database with users, labels, and
// availability for local development.
//
// Every write goes through the services, so the seeded rows satisfy the
// same invariants as rows written over the API.
//
// Usage:
//
//	DB_PATH=~/headercal/db go run ./cmd/seed
//	DB_PATH=~/headercal/db go run ./cmd/seed --users 10 --weeks 8
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/headercal/headercal-server/internal/auth"
	"github.com/headercal/headercal-server/internal/domain"
	"github.com/headercal/headercal-server/internal/id"
	"github.com/headercal/headercal-server/internal/service"
	"github.com/headercal/headercal-server/internal/store"
	"github.com/headercal/headercal-server/internal/validation"
)

var (
	userCount = flag.Int("users", 5, "Number of users to create")
	weeks     = flag.Int("weeks", 4, "Weeks of calendar to fill, starting this Monday")
)

var usernames = []string{"ada", "grace", "linus", "barbara", "ken", "margaret", "dennis", "frances", "edsger", "radia"}

var labelTitles = []string{"Conference", "Vacation", "Team offsite", "Sprint planning", "Moving house", "On call", "Workshop"}

// seeder holds one signed-in identity per created user.
type seeder struct {
	session      *service.SessionService
	users        *service.UserService
	labels       *service.LabelService
	availability *service.AvailabilityService
	rng          *rand.Rand
}

func main() {
	flag.Parse()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/headercal/db")
	}

	fmt.Printf("Opening database at: %s\n", dbPath)

	logger := slog.New(slog.DiscardHandler)
	s, err := store.New(dbPath, logger, store.NewNoopEmitter())
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	v := validation.New()
	sd := &seeder{
		session:      service.NewSessionService(s, logger),
		users:        service.NewUserService(s, v, logger),
		labels:       service.NewLabelService(s, nil, v, logger),
		availability: service.NewAvailabilityService(s, logger),
		rng:          rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}

	ctx := context.Background()
	monday := startOfWeek(time.Now().UTC())

	for n := range *userCount {
		name := usernames[n%len(usernames)]
		if n >= len(usernames) {
			name = fmt.Sprintf("%s%d", name, n/len(usernames)+1)
		}

		if err := sd.seedUser(ctx, name, monday); err != nil {
			log.Printf("Failed to seed %s: %v", name, err)
		}
	}

	fmt.Println("\nSeeding complete!")
}

func (sd *seeder) seedUser(ctx context.Context, name string, monday time.Time) error {
	subject, err := id.Secret()
	if err != nil {
		return err
	}
	credential := auth.DeriveCredential("headercal-seed", subject)

	// Sign in the way a client would, then leave so the user ends offline.
	if err := sd.session.OnConnect(ctx, credential); err != nil {
		return err
	}
	defer func() { _ = sd.session.OnDisconnect(ctx, credential) }()

	user, err := sd.users.Create(ctx, name)
	if err != nil {
		return err
	}
	if err := sd.session.ConnectToClient(ctx, credential, user.ID); err != nil {
		return err
	}

	fmt.Printf("\nSeeding user %s (%d)\n", user.Username, user.ID)

	labels := 0
	for week := range *weeks {
		if sd.rng.IntN(2) == 0 {
			continue
		}
		start := monday.AddDate(0, 0, 7*week+sd.rng.IntN(5))
		end := start.AddDate(0, 0, 1+sd.rng.IntN(3)).Add(-time.Nanosecond)
		_, err := sd.labels.Create(ctx, credential, service.CreateLabelRequest{
			Title:      labelTitles[sd.rng.IntN(len(labelTitles))],
			RangeStart: domain.FormatTimestamp(start),
			RangeEnd:   domain.FormatTimestamp(end),
		})
		if err != nil {
			return err
		}
		labels++
	}

	// Working hours at a random level, then a few overlapping writes so
	// the reconciliation paths run.
	writes := 0
	for day := range *weeks * 7 {
		date := monday.AddDate(0, 0, day)
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		start := date.Add(9 * time.Hour)
		end := date.Add(17 * time.Hour)
		if err := sd.setLevel(ctx, credential, start, end, int8(1+sd.rng.IntN(3))); err != nil {
			return err
		}
		writes++

		if sd.rng.IntN(4) == 0 {
			lunch := date.Add(12 * time.Hour)
			if err := sd.setLevel(ctx, credential, lunch, lunch.Add(time.Hour), 0); err != nil {
				return err
			}
			writes++
		}
	}

	fmt.Printf("  Created %d labels and %d availability writes\n", labels, writes)
	return nil
}

func (sd *seeder) setLevel(ctx context.Context, credential string, start, end time.Time, level int8) error {
	_, err := sd.availability.Create(ctx, credential,
		domain.FormatTimestamp(start), domain.FormatTimestamp(end), level)
	return err
}

func startOfWeek(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
