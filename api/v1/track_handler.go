package v1

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"analyzr/internal/events"
)

// TrackingData is the JSON body accepted by POST /track. The snippet
// resolves geo and user-agent fields client-side, so the server takes
// them as-is and only fills defaults.
type TrackingData struct {
	Domain          string `json:"domain"`
	URL             string `json:"url"`
	Event           string `json:"event"`
	Source          string `json:"source"`
	City            string `json:"city"`
	Region          string `json:"region"`
	Country         string `json:"country"`
	OperatingSystem string `json:"operatingSystem"`
	DeviceType      string `json:"deviceType"`
	BrowserName     string `json:"browserName"`
}

// Track ingests one tracking event. Payloads whose URL does not contain
// the claimed domain are rejected with a 400 so a snippet copied onto
// the wrong site pollutes nothing.
func (h *Handler) Track(c *fiber.Ctx) error {
	var data TrackingData
	if err := c.BodyParser(&data); err != nil {
		h.logger.Debug("Failed to parse tracking request", slog.Any("error", err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": errTrackingFailed,
		})
	}

	// The browser snippet resolves location itself; payloads from other
	// clients arrive bare and are geolocated here from the client IP.
	if data.City == "" && data.Region == "" && data.Country == "" && h.locator != nil {
		if ip := clientIP(c); ip != "" {
			location := h.locator.Locate(ip)
			data.City = location.City
			data.Region = location.Region
			data.Country = location.Country
		}
	}

	input := &events.TrackingInput{
		Domain:          data.Domain,
		URL:             data.URL,
		Event:           events.EventKind(data.Event),
		Source:          data.Source,
		City:            data.City,
		Region:          data.Region,
		Country:         data.Country,
		OperatingSystem: data.OperatingSystem,
		DeviceType:      data.DeviceType,
		BrowserName:     data.BrowserName,
	}

	if err := events.Collect(h.db, h.logger, input); err != nil {
		var mismatch *events.DomainMismatchError
		if errors.As(err, &mismatch) {
			h.logger.Info("Rejected tracking event",
				slog.String("domain", mismatch.Domain),
				slog.String("url", mismatch.URL))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": errDomainMismatch,
			})
		}

		var invalid *events.InvalidEventError
		if errors.As(err, &invalid) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": invalid.Error(),
			})
		}

		h.logger.Error("Failed to record tracking event", slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": errTrackingFailed,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}
