// Package availability keeps a user's availability rows non-overlapping.
//
// Reconcile is a pure planner: given the rows a user owns and a new span, it
// returns the mutations that absorb the span. The caller applies the plan in
// one store transaction.
package availability

import (
	"fmt"
	"time"
)

// Span is a closed interval [Start, End].
type Span struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within the span, bounds included.
func (s Span) Contains(t time.Time) bool {
	return !t.Before(s.Start) && !t.After(s.End)
}

// Overlaps reports whether the two closed spans share at least one instant.
func (s Span) Overlaps(o Span) bool {
	return !s.End.Before(o.Start) && !o.End.Before(s.Start)
}

func (s Span) String() string {
	return fmt.Sprintf("[%s, %s]", s.Start.UTC().Format(time.RFC3339Nano), s.End.UTC().Format(time.RFC3339Nano))
}

// Relation describes where an existing span sits relative to a new one.
type Relation int

const (
	// Below ends before the new span starts.
	Below Relation = iota
	// Above starts after the new span ends.
	Above
	// Contained lies entirely within the new span.
	Contained
	// Surrounds starts before and ends after the new span.
	Surrounds
	// LeftOverlap starts before the new span and ends inside it.
	LeftOverlap
	// RightOverlap starts inside the new span and ends after it.
	RightOverlap
)

var relationNames = [...]string{"below", "above", "contained", "surrounds", "left-overlap", "right-overlap"}

func (r Relation) String() string {
	if r < 0 || int(r) >= len(relationNames) {
		return fmt.Sprintf("relation(%d)", int(r))
	}
	return relationNames[r]
}

// Classify places other relative to n. The checks run in a fixed order and
// each one assumes the earlier ones failed.
func Classify(other, n Span) Relation {
	switch {
	case other.End.Before(n.Start):
		return Below
	case other.Start.After(n.End):
		return Above
	case !other.Start.Before(n.Start) && !other.End.After(n.End):
		return Contained
	case other.Start.Before(n.Start) && other.End.After(n.End):
		return Surrounds
	case other.Start.Before(n.Start):
		return LeftOverlap
	default:
		return RightOverlap
	}
}
