package availability

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/headercal/headercal-server/internal/domain"
)

// ErrInvertedRange is returned when a span ends before it starts.
var ErrInvertedRange = errors.New("range ends before it starts")

// Request is a new availability span for one user.
type Request struct {
	UserID uint32
	Span   Span
	Level  int8
}

// Plan lists the mutations that absorb a Request into a user's rows.
// Updates hold full modified copies of existing rows. Inserts have ID 0.
type Plan struct {
	Updates []domain.RangeAvailability
	Deletes []uint32
	Inserts []domain.RangeAvailability
}

// Empty reports whether applying the plan would change nothing.
func (p *Plan) Empty() bool {
	return len(p.Updates) == 0 && len(p.Deletes) == 0 && len(p.Inserts) == 0
}

// Reconcile plans the absorption of req into existing, which must be the
// rows owned by req.UserID. Every existing row overlapping req.Span is
// deleted, trimmed, or split so that nothing overlaps the new span, and
// unless req.Level is the default level the span itself is inserted.
//
// Trimmed bounds sit one nanosecond outside the new span, so the result
// covers the same instants with no gap and no shared boundary.
func Reconcile(existing []domain.RangeAvailability, req Request) (Plan, error) {
	var plan Plan

	if req.Span.End.Before(req.Span.Start) {
		return plan, ErrInvertedRange
	}

	startBefore := req.Span.Start.Add(-time.Nanosecond)
	endAfter := req.Span.End.Add(time.Nanosecond)

	for _, row := range existing {
		start, end, err := row.Bounds()
		if err != nil {
			return Plan{}, fmt.Errorf("availability row %d: %w", row.ID, err)
		}

		switch Classify(Span{Start: start, End: end}, req.Span) {
		case Below, Above:
			continue

		case Contained:
			plan.Deletes = append(plan.Deletes, row.ID)

		case Surrounds:
			tail := domain.RangeAvailability{
				CreatorUserID:     row.CreatorUserID,
				AvailabilityLevel: row.AvailabilityLevel,
				RangeStart:        domain.FormatTimestamp(endAfter),
				RangeEnd:          row.RangeEnd,
			}
			row.RangeEnd = domain.FormatTimestamp(startBefore)
			plan.Updates = append(plan.Updates, row)
			plan.Inserts = append(plan.Inserts, tail)

		case LeftOverlap:
			row.RangeEnd = domain.FormatTimestamp(startBefore)
			plan.Updates = append(plan.Updates, row)

		case RightOverlap:
			row.RangeStart = domain.FormatTimestamp(endAfter)
			plan.Updates = append(plan.Updates, row)
		}
	}

	if req.Level != domain.DefaultLevel {
		plan.Inserts = append(plan.Inserts, domain.RangeAvailability{
			CreatorUserID:     req.UserID,
			AvailabilityLevel: req.Level,
			RangeStart:        domain.FormatTimestamp(req.Span.Start),
			RangeEnd:          domain.FormatTimestamp(req.Span.End),
		})
	}

	return plan, nil
}

// Apply returns the row set that results from applying plan to rows.
// Inserted rows are given IDs from nextID onward. It is the in-memory
// counterpart of applying the plan to a store.
func Apply(rows []domain.RangeAvailability, plan Plan, nextID uint32) []domain.RangeAvailability {
	out := make([]domain.RangeAvailability, 0, len(rows)+len(plan.Inserts))

	updated := make(map[uint32]domain.RangeAvailability, len(plan.Updates))
	for _, u := range plan.Updates {
		updated[u.ID] = u
	}

	for _, r := range rows {
		if slices.Contains(plan.Deletes, r.ID) {
			continue
		}
		if u, ok := updated[r.ID]; ok {
			r = u
		}
		out = append(out, r)
	}

	for _, ins := range plan.Inserts {
		ins.ID = nextID
		nextID++
		out = append(out, ins)
	}

	return out
}
