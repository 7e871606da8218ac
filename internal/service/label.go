package service

import (
	"context"
	"log/slog"

	"github.com/headercal/headercal-server/internal/color"
	"github.com/headercal/headercal-server/internal/domain"
	domainerrors "github.com/headercal/headercal-server/internal/errors"
	"github.com/headercal/headercal-server/internal/normalize"
	"github.com/headercal/headercal-server/internal/store"
	"github.com/headercal/headercal-server/internal/validation"
)

// LabelSearcher finds label ids by title.
type LabelSearcher interface {
	SearchLabels(ctx context.Context, query string, limit int) ([]uint32, error)
}

// CreateLabelRequest is the input to LabelService.Create.
type CreateLabelRequest struct {
	Title      string        `json:"title" validate:"max=256"`
	Color      *domain.Color `json:"color,omitempty"` // defaults to the creator's color
	RangeStart string        `json:"range_start"`
	RangeEnd   string        `json:"range_end"`
}

// LabelService manages range labels. Labels may overlap freely; only
// ownership is enforced.
type LabelService struct {
	store     store.Backend
	searcher  LabelSearcher
	validator *validation.Validator
	logger    *slog.Logger
}

// NewLabelService creates a new label service. searcher may be nil when
// search is disabled.
func NewLabelService(store store.Backend, searcher LabelSearcher, validator *validation.Validator, logger *slog.Logger) *LabelService {
	return &LabelService{
		store:     store,
		searcher:  searcher,
		validator: validator,
		logger:    logger,
	}
}

// Create inserts a label owned by the caller's user.
func (s *LabelService) Create(ctx context.Context, credential string, req CreateLabelRequest) (label *domain.RangeLabel, err error) {
	defer func() { record(opCreateLabel, err) }()

	req.Title = normalize.Title(req.Title)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	err = s.store.Update(ctx, func(tx store.Tx) error {
		identity, err := signedIn(ctx, tx, credential)
		if err != nil {
			return err
		}

		span, err := parseRange(req.RangeStart, req.RangeEnd)
		if err != nil {
			return err
		}

		label = &domain.RangeLabel{
			CreatorUserID: identity.UserID,
			Color:         color.ForUser(identity.UserID),
			Title:         req.Title,
			RangeStart:    domain.FormatTimestamp(span.Start),
			RangeEnd:      domain.FormatTimestamp(span.End),
		}
		if req.Color != nil {
			label.Color = *req.Color
		}
		return tx.InsertLabel(ctx, label)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("range label created", "label_id", label.ID, "user_id", label.CreatorUserID)
	return label, nil
}

// Delete removes a label created by the caller's user.
func (s *LabelService) Delete(ctx context.Context, credential string, id uint32) (err error) {
	defer func() { record(opDeleteLabel, err) }()

	return s.store.Update(ctx, func(tx store.Tx) error {
		identity, err := signedIn(ctx, tx, credential)
		if err != nil {
			return err
		}

		label, err := tx.GetLabel(ctx, id)
		if isNotFound(err) {
			return domainerrors.RowNotFound("No such range label")
		}
		if err != nil {
			return err
		}
		if label.CreatorUserID != identity.UserID {
			return domainerrors.ErrNotOwner
		}
		return tx.DeleteLabel(ctx, id)
	})
}

// List returns labels ordered by id, restricted to one creator when
// creatorID is non-zero.
func (s *LabelService) List(ctx context.Context, creatorID uint32) ([]*domain.RangeLabel, error) {
	var labels []*domain.RangeLabel
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		if creatorID != 0 {
			labels, err = tx.ListLabelsByCreator(ctx, creatorID)
		} else {
			labels, err = tx.ListLabels(ctx)
		}
		return err
	})
	return labels, err
}

// Search returns labels whose titles match query, best match first. Hits
// for labels deleted since they were indexed are skipped.
func (s *LabelService) Search(ctx context.Context, query string, limit int) ([]*domain.RangeLabel, error) {
	if s.searcher == nil {
		return nil, domainerrors.Validation("label search is disabled")
	}
	if err := s.validator.Var("q", query, "notblank"); err != nil {
		return nil, err
	}

	ids, err := s.searcher.SearchLabels(ctx, query, limit)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "label search failed")
	}

	labels := make([]*domain.RangeLabel, 0, len(ids))
	err = s.store.View(ctx, func(tx store.Tx) error {
		for _, id := range ids {
			label, err := tx.GetLabel(ctx, id)
			if isNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			labels = append(labels, label)
		}
		return nil
	})
	return labels, err
}
