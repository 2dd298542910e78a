package events

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"analyzr/internal/pkg/async"
	"analyzr/internal/timeframe"
)

// ViewSet bundles the raw row sets the aggregation engine consumes.
type ViewSet struct {
	PageViews    []PageView
	Visits       []Visit
	CustomEvents []CustomEvent
}

// FetchViews loads the page views, visits, and custom events for a domain,
// applying the same cutoff rule to page views and visits. The three queries
// are independent reads and run concurrently.
func FetchViews(ctx context.Context, db *gorm.DB, domain string, window timeframe.Window) (*ViewSet, error) {
	now := time.Now().UTC()

	pool := async.NewPool(3)
	results := pool.Execute(ctx, []async.Task{
		{
			Name: "page_views",
			Execute: func() (any, error) {
				var rows []PageView
				q := db.Where("domain = ?", domain)
				if !window.Lifetime() {
					q = q.Where("created_at >= ?", window.Cutoff(now))
				}
				err := q.Find(&rows).Error
				return rows, err
			},
		},
		{
			Name: "visits",
			Execute: func() (any, error) {
				var rows []Visit
				q := db.Where("website_id = ?", domain)
				if !window.Lifetime() {
					q = q.Where("created_at >= ?", window.Cutoff(now))
				}
				err := q.Find(&rows).Error
				return rows, err
			},
		},
		{
			Name: "custom_events",
			Execute: func() (any, error) {
				var rows []CustomEvent
				err := db.Where("website_id = ?", domain).
					Order("created_at DESC").
					Find(&rows).Error
				return rows, err
			},
		},
	})

	for name, result := range results {
		if result.Err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", name, result.Err)
		}
	}

	set := &ViewSet{}
	if r, ok := results["page_views"]; ok {
		set.PageViews = r.Data.([]PageView)
	}
	if r, ok := results["visits"]; ok {
		set.Visits = r.Data.([]Visit)
	}
	if r, ok := results["custom_events"]; ok {
		set.CustomEvents = r.Data.([]CustomEvent)
	}
	return set, nil
}

// CountActiveUsers counts page views for a domain within a trailing window.
// This is the polled presence indicator shown on the dashboard.
func CountActiveUsers(db *gorm.DB, domain string, window time.Duration) (int64, error) {
	now := time.Now().UTC()
	var count int64
	err := db.Model(&PageView{}).
		Where("domain = ?", domain).
		Where("created_at BETWEEN ? AND ?", now.Add(-window), now).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count active users: %w", err)
	}
	return count, nil
}

// AllCustomEvents returns every stored custom event, newest first.
func AllCustomEvents(db *gorm.DB) ([]CustomEvent, error) {
	var rows []CustomEvent
	if err := db.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch custom events: %w", err)
	}
	return rows, nil
}

// DeleteRowsOlderThan removes analytics rows past the retention horizon.
// Returns the total number of rows removed.
func DeleteRowsOlderThan(db *gorm.DB, cutoff time.Time) (int64, error) {
	var total int64

	res := db.Where("created_at < ?", cutoff).Delete(&PageView{})
	if res.Error != nil {
		return total, fmt.Errorf("failed to delete old page views: %w", res.Error)
	}
	total += res.RowsAffected

	res = db.Where("created_at < ?", cutoff).Delete(&Visit{})
	if res.Error != nil {
		return total, fmt.Errorf("failed to delete old visits: %w", res.Error)
	}
	total += res.RowsAffected

	res = db.Where("created_at < ?", cutoff).Delete(&CustomEvent{})
	if res.Error != nil {
		return total, fmt.Errorf("failed to delete old custom events: %w", res.Error)
	}
	total += res.RowsAffected

	return total, nil
}
