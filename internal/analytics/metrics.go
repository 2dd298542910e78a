package analytics

import (
	"fmt"
	"math"
	"time"

	"analyzr/internal/events"
)

// PagesPerSession divides page views by visits, formatted to one decimal.
// Zero visits yields "0" rather than a division error.
func PagesPerSession(pageViewCount, visitCount int) string {
	if visitCount == 0 {
		return "0"
	}
	return fmt.Sprintf("%.1f", float64(pageViewCount)/float64(visitCount))
}

// DeltaPercentage computes the share of total activity that happened in
// the trailing comparison window, as a percentage.
//
// A zero total is substituted with 1, so the result degrades to the raw
// recent count instead of dividing by zero. That matches the dashboard's
// historical behavior; a "no data" state would be more honest.
func DeltaPercentage(recentCount, totalCount int) float64 {
	denominator := totalCount
	if denominator == 0 {
		denominator = 1
	}
	return float64(recentCount) * 100 / float64(denominator)
}

// CountPageViewsSince counts page views at or after the cutoff.
func CountPageViewsSince(rows []events.PageView, cutoff time.Time) int {
	count := 0
	for _, row := range rows {
		if !row.CreatedAt.Before(cutoff) {
			count++
		}
	}
	return count
}

// CountVisitsSince counts visits at or after the cutoff.
func CountVisitsSince(rows []events.Visit, cutoff time.Time) int {
	count := 0
	for _, row := range rows {
		if !row.CreatedAt.Before(cutoff) {
			count++
		}
	}
	return count
}

// AbbreviateNumber formats a count for display: 2500000 -> "2.50M",
// 1500 -> "1.50K", whole numbers without decimals.
func AbbreviateNumber(number float64) string {
	switch {
	case number >= 1_000_000:
		return fmt.Sprintf("%.2fM", math.Round(number/1_000_000*100)/100)
	case number >= 1_000:
		return fmt.Sprintf("%.2fK", math.Round(number/1_000*100)/100)
	case number == math.Trunc(number):
		return fmt.Sprintf("%d", int64(number))
	default:
		return fmt.Sprintf("%.2f", math.Round(number*100)/100)
	}
}
