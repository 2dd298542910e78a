package v1

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"analyzr/internal/analytics"
	"analyzr/internal/events"
	"analyzr/internal/timeframe"
	"analyzr/internal/websites"
)

var titleCaser = cases.Title(language.English)

// Stats computes the full dashboard payload for one website: every
// grouping, the bucketed time series, and the derived metrics, all from
// a single concurrent fetch of the raw rows.
func (h *Handler) Stats(c *fiber.Ctx) error {
	domain := c.Query("domain")
	if domain == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "domain is required",
		})
	}

	window, err := timeframe.ParseWindow(c.Query("filter", timeframe.Lifetime))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if _, err := websites.GetWebsiteByName(h.db, domain); err != nil {
		var notFound *websites.WebsiteNotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Website not found",
			})
		}
		h.logger.Error("Failed to look up website", slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch stats",
		})
	}

	set, err := events.FetchViews(c.Context(), h.db, domain, window)
	if err != nil {
		h.logger.Error("Failed to fetch analytics rows",
			slog.String("domain", domain), slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch stats",
		})
	}

	now := time.Now().UTC()
	pageViews := analytics.FilterPageViews(set.PageViews, window, now)
	visits := analytics.FilterVisits(set.Visits, window, now)

	dayAgo := now.Add(-24 * time.Hour)
	recentPageViews := analytics.CountPageViewsSince(pageViews, dayAgo)
	recentVisits := analytics.CountVisitsSince(visits, dayAgo)

	return c.JSON(fiber.Map{
		"domain": domain,
		"filter": window.Token(),

		"pageViews":       len(pageViews),
		"visits":          len(visits),
		"pagesPerSession": analytics.PagesPerSession(len(pageViews), len(visits)),
		"pageViewsDelta":  analytics.DeltaPercentage(recentPageViews, len(pageViews)),
		"visitsDelta":     analytics.DeltaPercentage(recentVisits, len(visits)),

		"groupedPageViews": analytics.GroupPageViews(pageViews),
		"groupedSources":   analytics.GroupSources(visits),
		"groupedLocations": analytics.GroupLocations(pageViews),
		"groupedCountries": analytics.GroupCountries(pageViews),
		"groupedOS":        analytics.GroupOS(pageViews),
		"groupedDevices":   displayDevices(analytics.GroupDevices(pageViews)),
		"groupedBrowsers":  analytics.GroupBrowsers(pageViews),

		"timeSeries": analytics.BuildTimeSeries(pageViews, visits, window, now),

		"customEvents": set.CustomEvents,
	})
}

// ActiveUsers reports the page-view count inside the trailing activity
// window, the dashboard's polled presence indicator.
func (h *Handler) ActiveUsers(c *fiber.Ctx) error {
	domain := c.Query("domain")
	if domain == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "domain is required",
		})
	}

	count, err := events.CountActiveUsers(h.db, domain, h.cfg.GetActiveWindow())
	if err != nil {
		h.logger.Error("Failed to count active users",
			slog.String("domain", domain), slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to count active users",
		})
	}

	return c.JSON(fiber.Map{"activeUsers": count})
}

// displayDevices title-cases the stored device types ("mobile" ->
// "Mobile") for direct rendering.
func displayDevices(rows []analytics.GroupedDevice) []analytics.GroupedDevice {
	for i := range rows {
		rows[i].DeviceType = titleCaser.String(rows[i].DeviceType)
	}
	return rows
}
