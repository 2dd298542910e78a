package events

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"analyzr/internal/pkg/sqlitex"
)

// DomainMismatchError is returned when a tracking payload's URL does not
// belong to the claimed domain.
type DomainMismatchError struct {
	Domain string
	URL    string
}

func (e *DomainMismatchError) Error() string {
	return fmt.Sprintf("url %q does not match domain %q", e.URL, e.Domain)
}

// InvalidEventError is returned for an unrecognized event kind.
type InvalidEventError struct {
	Event string
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("invalid event kind: %q", e.Event)
}

// TrackingInput is one tracking payload from the snippet.
type TrackingInput struct {
	Domain          string
	URL             string
	Event           EventKind
	Source          string
	City            string
	Region          string
	Country         string
	OperatingSystem string
	DeviceType      string
	BrowserName     string
	Timestamp       time.Time // zero means now
}

// Collect validates one tracking payload and persists the matching row.
//
// The URL-contains-domain check is a cheap anti-spoofing measure, not a
// strict origin check: the snippet runs on the tracked page and cannot
// set forbidden headers, so the claimed domain must at least appear in
// the page URL it reports.
//
// pageview inserts a PageView, session_start inserts a Visit, and
// session_end is acknowledged without persistence: there is no
// session-duration tracking in storage.
func Collect(db *gorm.DB, logger *slog.Logger, input *TrackingInput) error {
	if !input.Event.Valid() {
		return &InvalidEventError{Event: string(input.Event)}
	}

	if !strings.Contains(input.URL, input.Domain) {
		return &DomainMismatchError{Domain: input.Domain, URL: input.URL}
	}

	now := input.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}

	switch input.Event {
	case EventKindPageView:
		row := PageView{
			Domain:          input.Domain,
			Page:            input.URL,
			City:            orDefault(input.City, UnknownValue),
			Region:          orDefault(input.Region, UnknownValue),
			Country:         orDefault(input.Country, UnknownValue),
			OperatingSystem: orDefault(input.OperatingSystem, UnknownValue),
			DeviceType:      orDefault(input.DeviceType, UnknownValue),
			BrowserName:     orDefault(input.BrowserName, UnknownValue),
			CreatedAt:       now,
		}
		if err := sqlitex.PerformWrite(logger, db, func(tx *gorm.DB) error {
			return tx.Create(&row).Error
		}); err != nil {
			return fmt.Errorf("failed to insert page view: %w", err)
		}
		logger.Debug("Recorded page view",
			slog.String("domain", input.Domain),
			slog.String("page", input.URL))

	case EventKindSessionStart:
		row := Visit{
			WebsiteID: input.Domain,
			Source:    orDefault(input.Source, DirectSource),
			CreatedAt: now,
		}
		if err := sqlitex.PerformWrite(logger, db, func(tx *gorm.DB) error {
			return tx.Create(&row).Error
		}); err != nil {
			return fmt.Errorf("failed to insert visit: %w", err)
		}
		logger.Debug("Recorded visit",
			slog.String("domain", input.Domain),
			slog.String("source", row.Source))

	case EventKindSessionEnd:
		// Accepted but not persisted.
		logger.Debug("Acknowledged session end", slog.String("domain", input.Domain))
	}

	return nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
