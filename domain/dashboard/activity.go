package dashboard

import (
	"time"

	"lms-dashboard/domain/core/valueobjects"
)

// Granularity is the width of one activity bucket
type Granularity string

const (
	GranularityHour Granularity = "hour"
	GranularityDay  Granularity = "day"
)

// Bucket is a half-open interval [Start, End) of a series
type Bucket struct {
	Start time.Time
	End   time.Time
	Label string
}

// ActivityWindow is the ordered set of buckets for a timeframe, oldest first
type ActivityWindow struct {
	Timeframe   valueobjects.Timeframe
	Granularity Granularity
	Buckets     []Bucket
}

// From is the inclusive start of the window
func (w ActivityWindow) From() time.Time { return w.Buckets[0].Start }

// To is the exclusive end of the window
func (w ActivityWindow) To() time.Time { return w.Buckets[len(w.Buckets)-1].End }

// Labels returns the bucket labels in order
func (w ActivityWindow) Labels() []string {
	labels := make([]string, len(w.Buckets))
	for i, b := range w.Buckets {
		labels[i] = b.Label
	}
	return labels
}

// Index returns the bucket holding t, or -1
func (w ActivityWindow) Index(t time.Time) int {
	for i, b := range w.Buckets {
		if !t.Before(b.Start) && t.Before(b.End) {
			return i
		}
	}
	return -1
}

// Fill places grouped counts into a series aligned with the buckets.
// Counts outside the window are dropped.
func (w ActivityWindow) Fill(counts []BucketCount) []int64 {
	series := make([]int64, len(w.Buckets))
	for _, c := range counts {
		if i := w.Index(c.Start); i >= 0 {
			series[i] += c.Count
		}
	}
	return series
}

// BucketCount is one row of a grouped count query
type BucketCount struct {
	Start time.Time
	Count int64
}

// NewActivityWindow lays out the buckets for tf relative to now, in now's location.
//
//	day:   24 hourly buckets, the current hour last
//	week:  Monday through Sunday of the current week
//	month: 30 daily buckets, today last
func NewActivityWindow(tf valueobjects.Timeframe, now time.Time) ActivityWindow {
	loc := now.Location()
	switch tf {
	case valueobjects.TimeframeDay:
		current := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, loc)
		buckets := make([]Bucket, 24)
		for i := 0; i < 24; i++ {
			start := current.Add(time.Duration(i-23) * time.Hour)
			buckets[i] = Bucket{Start: start, End: start.Add(time.Hour), Label: start.Format("15:04")}
		}
		return ActivityWindow{Timeframe: tf, Granularity: GranularityHour, Buckets: buckets}

	case valueobjects.TimeframeWeek:
		today := startOfDay(now)
		offset := (int(today.Weekday()) + 6) % 7
		monday := today.AddDate(0, 0, -offset)
		return ActivityWindow{Timeframe: tf, Granularity: GranularityDay, Buckets: dailyBuckets(monday, 7, "Mon")}

	default:
		today := startOfDay(now)
		first := today.AddDate(0, 0, -29)
		return ActivityWindow{Timeframe: valueobjects.TimeframeMonth, Granularity: GranularityDay, Buckets: dailyBuckets(first, 30, "Jan 02")}
	}
}

func dailyBuckets(first time.Time, n int, layout string) []Bucket {
	buckets := make([]Bucket, n)
	for i := 0; i < n; i++ {
		start := first.AddDate(0, 0, i)
		buckets[i] = Bucket{Start: start, End: start.AddDate(0, 0, 1), Label: start.Format(layout)}
	}
	return buckets
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
