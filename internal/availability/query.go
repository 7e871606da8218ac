package availability

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/headercal/headercal-server/internal/domain"
)

// LevelAt returns the level covering t, or the default level when no row
// covers it. Rows are assumed disjoint.
func LevelAt(rows []domain.RangeAvailability, t time.Time) (int8, error) {
	for _, r := range rows {
		start, end, err := r.Bounds()
		if err != nil {
			return 0, fmt.Errorf("availability row %d: %w", r.ID, err)
		}
		if (Span{Start: start, End: end}).Contains(t) {
			return r.AvailabilityLevel, nil
		}
	}
	return domain.DefaultLevel, nil
}

// OverlapError names two rows that share an instant.
type OverlapError struct {
	First, Second uint32
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("availability rows %d and %d overlap", e.First, e.Second)
}

// CheckDisjoint verifies that no two rows overlap. It returns an
// *OverlapError for the first offending pair in start order.
func CheckDisjoint(rows []domain.RangeAvailability) error {
	type bounded struct {
		id   uint32
		span Span
	}

	spans := make([]bounded, 0, len(rows))
	for _, r := range rows {
		start, end, err := r.Bounds()
		if err != nil {
			return fmt.Errorf("availability row %d: %w", r.ID, err)
		}
		spans = append(spans, bounded{id: r.ID, span: Span{Start: start, End: end}})
	}

	slices.SortFunc(spans, func(a, b bounded) int {
		return a.span.Start.Compare(b.span.Start)
	})

	for i := 1; i < len(spans); i++ {
		if spans[i-1].span.Overlaps(spans[i].span) {
			return &OverlapError{First: spans[i-1].id, Second: spans[i].id}
		}
	}
	return nil
}

// SortByStart orders rows by start time, then id. A row whose start does
// not parse is reported and rows are left in their original order.
func SortByStart(rows []domain.RangeAvailability) error {
	starts := make(map[uint32]time.Time, len(rows))
	for _, r := range rows {
		start, err := domain.ParseTimestamp(r.RangeStart)
		if err != nil {
			return fmt.Errorf("availability row %d: %w", r.ID, err)
		}
		starts[r.ID] = start
	}

	slices.SortFunc(rows, func(a, b domain.RangeAvailability) int {
		if c := starts[a.ID].Compare(starts[b.ID]); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return nil
}
