// Package v1 exposes the public HTTP surface: the tracking ingest
// endpoint, the authenticated custom-event API, and the dashboard stats
// queries.
package v1

import (
	"log/slog"

	"gorm.io/gorm"

	"analyzr/internal/config"
	"analyzr/internal/notify"
	"analyzr/internal/tracker"
)

const (
	errDomainMismatch = "Domain mismatch"
	errTrackingFailed = "Failed to process tracking request"
	errInvalidAPIKey  = "Unauthorized - Invalid API"
	errEmptyFields    = "Name, Domain, and Description Fields Must NOT Be Empty."
	msgWithDiscord    = "success with discord notification"
	msgDiscordFailed  = "Event recorded but Discord notification failed"
	msgWithoutDiscord = "success without discord notification"
)

// Handler bundles the dependencies shared by the v1 endpoints.
type Handler struct {
	db       *gorm.DB
	logger   *slog.Logger
	cfg      *config.Config
	notifier notify.Notifier
	locator  tracker.Locator
}

// NewHandler creates the v1 handler set. notifier may be nil when no
// notification channel is configured; locator may be nil to skip
// server-side geolocation of bare payloads.
func NewHandler(db *gorm.DB, logger *slog.Logger, cfg *config.Config, notifier notify.Notifier, locator tracker.Locator) *Handler {
	return &Handler{
		db:       db,
		logger:   logger,
		cfg:      cfg,
		notifier: notifier,
		locator:  locator,
	}
}
