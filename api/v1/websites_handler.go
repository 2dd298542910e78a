package v1

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"analyzr/internal/websites"
)

// WebsiteData is the JSON body accepted by POST /websites.
type WebsiteData struct {
	Name string `json:"name"`
}

// CreateWebsite registers a new tracked website for the authenticated
// account.
func (h *Handler) CreateWebsite(c *fiber.Ctx) error {
	user, err := h.authenticate(c)
	if user == nil {
		return err
	}

	var data WebsiteData
	if err := c.BodyParser(&data); err != nil || data.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}

	website := &websites.Website{Name: data.Name, OwnerID: user.ID}
	if err := websites.CreateWebsite(h.db, h.logger, website); err != nil {
		var exists *websites.WebsiteExistsError
		if errors.As(err, &exists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": exists.Error(),
			})
		}
		h.logger.Error("Failed to create website", slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create website",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(website)
}

// ListWebsites returns the authenticated account's websites.
func (h *Handler) ListWebsites(c *fiber.Ctx) error {
	user, err := h.authenticate(c)
	if user == nil {
		return err
	}

	sites, err := websites.GetWebsitesByOwner(h.db, user.ID)
	if err != nil {
		h.logger.Error("Failed to list websites", slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list websites",
		})
	}

	return c.JSON(fiber.Map{"websites": sites})
}

// DeleteWebsite removes a website and all analytics rows recorded for it.
// Only the owner may delete a site.
func (h *Handler) DeleteWebsite(c *fiber.Ctx) error {
	user, err := h.authenticate(c)
	if user == nil {
		return err
	}

	name := c.Params("name")
	website, err := websites.GetWebsiteByName(h.db, name)
	if err != nil {
		var notFound *websites.WebsiteNotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Website not found",
			})
		}
		h.logger.Error("Failed to look up website", slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete website",
		})
	}
	if website.OwnerID != user.ID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Website belongs to another account",
		})
	}

	if err := websites.DeleteWebsite(h.db, h.logger, name); err != nil {
		h.logger.Error("Failed to delete website",
			slog.String("name", name), slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete website",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}
