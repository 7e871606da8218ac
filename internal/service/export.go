package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	domainerrors "github.com/headercal/headercal-server/internal/errors"
	"github.com/headercal/headercal-server/internal/ics"
	"github.com/headercal/headercal-server/internal/store"
)

// ExportService renders users' calendars as iCalendar feeds.
type ExportService struct {
	store  store.Backend
	host   string
	logger *slog.Logger
}

// NewExportService creates a new export service. host scopes event UIDs
// to this server.
func NewExportService(store store.Backend, host string, logger *slog.Logger) *ExportService {
	return &ExportService{
		store:  store,
		host:   host,
		logger: logger,
	}
}

// WriteCalendar writes one user's labels and availability to w.
func (s *ExportService) WriteCalendar(ctx context.Context, userID uint32, w io.Writer) error {
	feed := ics.Feed{Host: s.host, Stamp: time.Now()}

	err := s.store.View(ctx, func(tx store.Tx) error {
		user, err := tx.GetUser(ctx, userID)
		if isNotFound(err) {
			return domainerrors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		feed.User = user

		if feed.Labels, err = tx.ListLabelsByCreator(ctx, userID); err != nil {
			return err
		}
		feed.Availability, err = tx.ListAvailabilityByCreator(ctx, userID)
		return err
	})
	if err != nil {
		return err
	}

	skipped, err := ics.Write(w, feed)
	if skipped > 0 {
		s.logger.Warn("calendar export skipped rows with bad timestamps",
			"user_id", userID,
			"skipped", skipped,
		)
	}
	return err
}
