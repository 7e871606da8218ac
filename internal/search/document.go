// Package search provides full-text search over range label titles using
// Bleve, kept in sync with committed label changes.
package search

import (
	"strconv"

	"github.com/headercal/headercal-server/internal/domain"
	"github.com/headercal/headercal-server/internal/normalize"
)

// LabelDocument is the indexed form of a range label.
type LabelDocument struct {
	ID            string `json:"id"` // Label id in decimal
	Title         string `json:"title"`
	TitleFolded   string `json:"title_folded"` // Accent- and case-folded title
	CreatorUserID uint32 `json:"creator_user_id"`
	Color         string `json:"color"`

	// Bounds as Unix millis for range filters and sorting.
	RangeStart int64 `json:"range_start"`
	RangeEnd   int64 `json:"range_end"`
}

// ToMap converts the document to a map with lowercase field names.
// This ensures field names match the Bleve index mapping.
func (d *LabelDocument) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":              d.ID,
		"title":           d.Title,
		"title_folded":    d.TitleFolded,
		"creator_user_id": float64(d.CreatorUserID),
		"color":           d.Color,
	}
	if d.RangeStart != 0 {
		m["range_start"] = d.RangeStart
	}
	if d.RangeEnd != 0 {
		m["range_end"] = d.RangeEnd
	}
	return m
}

// DocID returns the index key of a label.
func DocID(labelID uint32) string {
	return strconv.FormatUint(uint64(labelID), 10)
}

// ParseDocID is the inverse of DocID.
func ParseDocID(id string) (uint32, error) {
	n, err := strconv.ParseUint(id, 10, 32)
	return uint32(n), err
}

// LabelToDocument converts a label. Unparseable bounds are left out of
// the range fields but the title stays searchable.
func LabelToDocument(l *domain.RangeLabel) *LabelDocument {
	doc := &LabelDocument{
		ID:            DocID(l.ID),
		Title:         l.Title,
		TitleFolded:   normalize.SearchKey(l.Title),
		CreatorUserID: l.CreatorUserID,
		Color:         l.Color.Hex(),
	}
	if start, end, err := l.Bounds(); err == nil {
		doc.RangeStart = start.UnixMilli()
		doc.RangeEnd = end.UnixMilli()
	}
	return doc
}
