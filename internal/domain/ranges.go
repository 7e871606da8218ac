package domain

import "time"

// DefaultLevel is the implicit availability of any instant not covered by a
// persisted RangeAvailability row. It is never stored.
const DefaultLevel int8 = 0

// RangeLabel is a decorative, titled span on a user's calendar. Labels may
// overlap freely.
type RangeLabel struct {
	ID            uint32 `json:"id"`
	CreatorUserID uint32 `json:"creator_user_id"`
	Color         Color  `json:"color"`
	Title         string `json:"title"`
	RangeStart    string `json:"range_start"`
	RangeEnd      string `json:"range_end"`
}

// RangeAvailability marks a closed span [RangeStart, RangeEnd] with a level.
// For one creator, persisted rows never overlap.
type RangeAvailability struct {
	ID                uint32 `json:"id"`
	CreatorUserID     uint32 `json:"creator_user_id"`
	AvailabilityLevel int8   `json:"availability_level"`
	RangeStart        string `json:"range_start"`
	RangeEnd          string `json:"range_end"`
}

// Bounds parses the stored range bounds.
func (r *RangeAvailability) Bounds() (start, end time.Time, err error) {
	if start, err = ParseTimestamp(r.RangeStart); err != nil {
		return
	}
	end, err = ParseTimestamp(r.RangeEnd)
	return
}

// Bounds parses the stored range bounds.
func (r *RangeLabel) Bounds() (start, end time.Time, err error) {
	if start, err = ParseTimestamp(r.RangeStart); err != nil {
		return
	}
	end, err = ParseTimestamp(r.RangeEnd)
	return
}
