// Package ics renders a user's calendar as an iCalendar feed.
package ics

import (
	"fmt"
	"io"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/headercal/headercal-server/internal/color"
	"github.com/headercal/headercal-server/internal/domain"
)

// ProductID identifies the generator in PRODID.
const ProductID = "-//headercal//headercal-server//EN"

// LevelProperty carries an availability row's level on its VEVENT.
var LevelProperty = ical.ComponentPropertyExtended("HEADERCAL-LEVEL")

// namespace seeds stable event UIDs, so a re-exported row keeps its UID.
var namespace = uuid.MustParse("6f1f6a0c-3b8e-4d0e-9a39-52f0b7d1c9a4")

// Feed is everything rendered for one user.
type Feed struct {
	Host         string
	User         *domain.User
	Labels       []*domain.RangeLabel
	Availability []*domain.RangeAvailability
	Stamp        time.Time
}

// LabelUID returns the UID of a label's VEVENT.
func LabelUID(host string, id uint32) string {
	return uuid.NewSHA1(namespace, []byte("range_label:"+host+":"+strconv.FormatUint(uint64(id), 10))).String()
}

// AvailabilityUID returns the UID of an availability row's VEVENT.
func AvailabilityUID(host string, id uint32) string {
	return uuid.NewSHA1(namespace, []byte("range_availability:"+host+":"+strconv.FormatUint(uint64(id), 10))).String()
}

// Build converts a feed into a calendar. Rows whose bounds fail to parse
// are skipped and counted.
func Build(feed Feed) (*ical.Calendar, int) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	cal.SetXWRCalName(feed.User.Username)
	cal.SetColor(color.ForUser(feed.User.ID).Hex())

	stamp := feed.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}
	stamp = stamp.UTC()

	skipped := 0
	for _, label := range feed.Labels {
		start, end, err := label.Bounds()
		if err != nil {
			skipped++
			continue
		}
		ev := cal.AddEvent(LabelUID(feed.Host, label.ID))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(start)
		ev.SetEndAt(end)
		ev.SetSummary(label.Title)
		ev.SetColor(label.Color.Hex())
		ev.AddCategory("LABEL")
	}

	for _, row := range feed.Availability {
		if row.AvailabilityLevel == domain.DefaultLevel {
			continue
		}
		start, end, err := row.Bounds()
		if err != nil {
			skipped++
			continue
		}
		ev := cal.AddEvent(AvailabilityUID(feed.Host, row.ID))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(start)
		ev.SetEndAt(end)
		ev.SetSummary(fmt.Sprintf("Availability %d", row.AvailabilityLevel))
		ev.AddCategory("AVAILABILITY")
		ev.SetProperty(LevelProperty, strconv.Itoa(int(row.AvailabilityLevel)))
		if row.AvailabilityLevel < 0 {
			ev.SetTimeTransparency(ical.TransparencyTransparent)
		} else {
			ev.SetTimeTransparency(ical.TransparencyOpaque)
		}
	}

	return cal, skipped
}

// Write renders feed to w.
func Write(w io.Writer, feed Feed) (int, error) {
	cal, skipped := Build(feed)
	if err := cal.SerializeTo(w); err != nil {
		return skipped, fmt.Errorf("write calendar: %w", err)
	}
	return skipped, nil
}
