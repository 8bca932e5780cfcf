// Package ettime renders UTC timestamps in US Eastern time, matching how the
// platform has always displayed dates to players.
package ettime

import (
	"time"
	_ "time/tzdata"
)

const layout = "2006-01-02 03:04 PM ET"

var eastern = mustLoadEastern()

func mustLoadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}

// Format renders t in Eastern time, e.g. "2025-01-01 07:00 PM ET".
// DST is handled by the zone database; the zero value renders as "".
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(eastern).Format(layout)
}

// FormatPtr renders optional timestamps, mapping nil to "".
func FormatPtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return Format(*t)
}
