package v1

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"analyzr/internal/events"
	"analyzr/internal/notify"
	"analyzr/internal/pkg/sqlitex"
	"analyzr/internal/users"
)

// CustomEventData is the JSON body accepted by POST /events.
type CustomEventData struct {
	Name        string              `json:"name"`
	Domain      string              `json:"domain"`
	Description string              `json:"description"`
	Emoji       string              `json:"emoji"`
	Fields      []events.EventField `json:"fields"`
}

// CreateEvent records an application-defined event for the authenticated
// account. The event is always persisted first; the Discord notification
// is best-effort and its failure only changes the response message.
func (h *Handler) CreateEvent(c *fiber.Ctx) error {
	user, err := h.authenticate(c)
	if user == nil {
		return err
	}

	var data CustomEventData
	if err := c.BodyParser(&data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": errEmptyFields,
		})
	}

	if data.Name == "" || data.Domain == "" || data.Description == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": errEmptyFields,
		})
	}

	row := events.CustomEvent{
		EventName: data.Name,
		WebsiteID: data.Domain,
		Message:   data.Description,
		Fields:    data.Fields,
	}
	if err := sqlitex.PerformWrite(h.logger, h.db, func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	}); err != nil {
		h.logger.Error("Failed to record custom event", slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record event",
		})
	}

	if user.DiscordID == "" || h.notifier == nil {
		return c.JSON(fiber.Map{"message": msgWithoutDiscord})
	}

	emoji := data.Emoji
	if emoji == "" {
		emoji = events.DefaultEmoji
	}
	notification := notify.EventNotification{
		Title:       emoji + " New Event: " + data.Name,
		Description: data.Description,
		Fields:      notificationFields(data.Domain, data.Fields),
	}
	if err := h.notifier.NotifyEvent(c.Context(), user.DiscordID, notification); err != nil {
		h.logger.Warn("Discord notification failed",
			slog.String("event", data.Name),
			slog.Any("error", err))
		return c.JSON(fiber.Map{"message": msgDiscordFailed})
	}

	return c.JSON(fiber.Map{"message": msgWithDiscord})
}

// ListEvents returns every recorded custom event, newest first, as a
// bare array. Unlike the ingest surface this requires an API key: the
// payload spans every tenant.
func (h *Handler) ListEvents(c *fiber.Ctx) error {
	if user, err := h.authenticate(c); user == nil {
		return err
	}

	rows, err := events.AllCustomEvents(h.db)
	if err != nil {
		h.logger.Error("Failed to fetch custom events", slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch events",
		})
	}

	return c.JSON(rows)
}

// authenticate resolves the Bearer API key to its user. On failure the
// error response has already been written; callers bail out when the
// returned user is nil, propagating the write error if any.
func (h *Handler) authenticate(c *fiber.Ctx) (*users.User, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return nil, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": errInvalidAPIKey,
		})
	}

	apiKey := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	user, err := users.FindByAPIKey(h.db, apiKey)
	if err != nil {
		if errors.Is(err, users.ErrUnknownAPIKey) {
			return nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": errInvalidAPIKey,
			})
		}
		h.logger.Error("Failed to resolve API key", slog.Any("error", err))
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to authenticate request",
		})
	}
	return user, nil
}

// notificationFields renders the embed fields for one event: the domain
// first, then the caller-supplied pairs.
func notificationFields(domain string, fields []events.EventField) []notify.EmbedField {
	out := make([]notify.EmbedField, 0, len(fields)+1)
	out = append(out, notify.EmbedField{Name: "Domain", Value: domain, Inline: true})
	for _, f := range fields {
		out = append(out, notify.EmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return out
}
