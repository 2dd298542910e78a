// Package timeframe parses dashboard filter tokens into time windows.
//
// A token is either "0" (lifetime, no cutoff) or of the form
// "last N <unit>" where unit is hour(s) or day(s), e.g. "last 1 hour",
// "last 7 days". Page views and visits are filtered with the identical
// cutoff rule, so counts stay monotonic across widening windows.
package timeframe

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Lifetime is the token selecting all rows regardless of age.
const Lifetime = "0"

// BucketKind selects how the time series groups timestamps.
type BucketKind int

const (
	// BucketHour groups by hour-of-day label ("3 PM").
	BucketHour BucketKind = iota
	// BucketDay groups by abbreviated calendar day ("Jan 2, 2006").
	BucketDay
	// BucketDayLong groups by full calendar day ("January 2, 2006").
	BucketDayLong
)

// Window is a parsed filter token.
type Window struct {
	token    string
	duration time.Duration
	lifetime bool
}

// ParseWindow parses a filter token. The zero-value token and "0" both
// mean lifetime.
func ParseWindow(token string) (Window, error) {
	token = strings.TrimSpace(token)
	if token == "" || token == Lifetime {
		return Window{token: Lifetime, lifetime: true}, nil
	}

	fields := strings.Fields(strings.ToLower(token))
	if len(fields) != 3 || fields[0] != "last" {
		return Window{}, fmt.Errorf("invalid filter token: %q", token)
	}

	n, err := strconv.Atoi(fields[1])
	if err != nil || n <= 0 {
		return Window{}, fmt.Errorf("invalid filter count in token: %q", token)
	}

	var unit time.Duration
	switch strings.TrimSuffix(fields[2], "s") {
	case "hour":
		unit = time.Hour
	case "day":
		unit = 24 * time.Hour
	default:
		return Window{}, fmt.Errorf("invalid filter unit in token: %q", token)
	}

	return Window{token: token, duration: time.Duration(n) * unit}, nil
}

// MustWindow parses a token and panics on error; for fixtures and tests.
func MustWindow(token string) Window {
	w, err := ParseWindow(token)
	if err != nil {
		panic(err)
	}
	return w
}

// Token returns the original filter token.
func (w Window) Token() string {
	return w.token
}

// Lifetime reports whether the window retains all rows.
func (w Window) Lifetime() bool {
	return w.lifetime
}

// Duration returns the window length; zero for lifetime.
func (w Window) Duration() time.Duration {
	return w.duration
}

// Cutoff returns the earliest instant retained, relative to now.
// For lifetime windows the zero time is returned.
func (w Window) Cutoff(now time.Time) time.Time {
	if w.lifetime {
		return time.Time{}
	}
	return now.Add(-w.duration)
}

// Contains reports whether a timestamp falls inside the window.
func (w Window) Contains(t, now time.Time) bool {
	if w.lifetime {
		return true
	}
	return !t.Before(w.Cutoff(now))
}

// Bucket returns the time-series grouping for this window: hour-of-day
// buckets for windows up to one day, calendar-day buckets otherwise.
// Lifetime and windows of 90 days or more use the long day label so wide
// charts stay unambiguous across years.
func (w Window) Bucket() BucketKind {
	if !w.lifetime && w.duration <= 24*time.Hour {
		return BucketHour
	}
	if w.lifetime || w.duration >= 90*24*time.Hour {
		return BucketDayLong
	}
	return BucketDay
}
