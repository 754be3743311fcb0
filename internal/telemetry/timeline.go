package telemetry

import (
	"fmt"
	"time"
)

// SeriesLength is the number of hourly buckets in a timeline.
const SeriesLength = 24

// TimeBucket is one hour of the attack timeline.
type TimeBucket struct {
	HourLabel string `json:"hour"`
	Count     int    `json:"count"`
}

// HourlySeries folds records into SeriesLength buckets ending at the hour of
// now, oldest first. Labels are hour-of-day only ("HH:00"), computed in the
// location of now.
//
// A record lands in bucket SeriesLength-1-hoursAgo where
// hoursAgo = floor((now - timestamp) / 1h). Records with hoursAgo outside
// [0, SeriesLength) and records without a timestamp are skipped.
func HourlySeries(records []Record, now time.Time) []TimeBucket {
	buckets := make([]TimeBucket, SeriesLength)
	for i := range buckets {
		hour := now.Add(-time.Duration(SeriesLength-1-i) * time.Hour)
		buckets[i].HourLabel = fmt.Sprintf("%02d:00", hour.Hour())
	}

	for _, r := range records {
		idx, ok := bucketIndex(r, now)
		if !ok {
			continue
		}
		buckets[idx].Count++
	}

	return buckets
}

func bucketIndex(r Record, now time.Time) (int, bool) {
	if !r.HasTimestamp() {
		return 0, false
	}
	hoursAgo := floorHours(now.Sub(r.Timestamp))
	if hoursAgo < 0 || hoursAgo >= SeriesLength {
		return 0, false
	}
	return SeriesLength - 1 - hoursAgo, true
}

// floorHours is floor division of d by one hour; Go's integer division
// truncates toward zero, which would put records up to an hour in the
// future into the current bucket.
func floorHours(d time.Duration) int {
	h := d / time.Hour
	if d%time.Hour < 0 {
		h--
	}
	return int(h)
}
