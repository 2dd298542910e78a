package analytics

import (
	"sort"
	"time"

	"analyzr/internal/events"
	"analyzr/internal/timeframe"
)

// dayFormat is the abbreviated calendar-day label, year always included
// so charts spanning a year boundary stay unambiguous.
const dayFormat = "Jan 2, 2006"

// dayLongFormat is the full-month variant used for lifetime and wide windows.
const dayLongFormat = "January 2, 2006"

type seriesBucket struct {
	label     string
	pageViews int
	visits    int

	// sort keys
	hour int       // 1..12 within the half-day, hour buckets only
	pm   bool      // hour buckets only
	day  time.Time // day buckets only
}

// BuildTimeSeries merges page-view and visit timestamps into one bucketed
// timeline. Windows of a day or less bucket by hour-of-day label; wider
// windows bucket by calendar day. Hour buckets sort AM before PM and by
// numeric label hour within each half; day buckets sort chronologically.
func BuildTimeSeries(pageViews []events.PageView, visits []events.Visit, window timeframe.Window, now time.Time) []TimePoint {
	buckets := make(map[string]*seriesBucket)
	order := make([]string, 0)

	add := func(t time.Time, isPageView bool) {
		if !window.Contains(t, now) {
			return
		}
		b := bucketFor(t, window.Bucket())
		existing, ok := buckets[b.label]
		if !ok {
			existing = b
			buckets[b.label] = b
			order = append(order, b.label)
		}
		if isPageView {
			existing.pageViews++
		} else {
			existing.visits++
		}
	}

	for _, row := range visits {
		add(row.CreatedAt, false)
	}
	for _, row := range pageViews {
		add(row.CreatedAt, true)
	}

	sorted := make([]*seriesBucket, 0, len(order))
	for _, label := range order {
		sorted = append(sorted, buckets[label])
	}

	if window.Bucket() == timeframe.BucketHour {
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := sorted[i], sorted[j]
			if a.pm != b.pm {
				return !a.pm
			}
			return a.hour < b.hour
		})
	} else {
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].day.Before(sorted[j].day)
		})
	}

	points := make([]TimePoint, len(sorted))
	for i, b := range sorted {
		points[i] = TimePoint{Label: b.label, PageViews: b.pageViews, Visits: b.visits}
	}
	return points
}

func bucketFor(t time.Time, kind timeframe.BucketKind) *seriesBucket {
	switch kind {
	case timeframe.BucketHour:
		return &seriesBucket{
			label: hourLabel(t),
			hour:  hour12(t),
			pm:    t.Hour() >= 12,
		}
	case timeframe.BucketDayLong:
		day := t.Truncate(24 * time.Hour)
		return &seriesBucket{label: t.Format(dayLongFormat), day: day}
	default:
		day := t.Truncate(24 * time.Hour)
		return &seriesBucket{label: t.Format(dayFormat), day: day}
	}
}

// hourLabel renders an hour-of-day label like "3 PM" or "12 AM".
func hourLabel(t time.Time) string {
	return t.Format("3 PM")
}

func hour12(t time.Time) int {
	h := t.Hour() % 12
	if h == 0 {
		h = 12
	}
	return h
}
