// Package websites manages tracked website records and their lifecycle.
package websites

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"analyzr/internal/events"
	"analyzr/internal/pkg/sqlitex"
)

// WebsiteNotFoundError is returned when a website lookup fails.
type WebsiteNotFoundError struct {
	Name string
}

func (e *WebsiteNotFoundError) Error() string {
	return fmt.Sprintf("website not found: %s", e.Name)
}

// WebsiteExistsError is returned when adding a website whose domain is
// already registered.
type WebsiteExistsError struct {
	Name string
}

func (e *WebsiteExistsError) Error() string {
	return fmt.Sprintf("website already exists: %s", e.Name)
}

// Website is a tracked website. Name is the domain string used as the
// tenant key on every analytics row.
type Website struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	OwnerID   uint      `gorm:"index;not null" json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateWebsite registers a new website after checking the domain is not
// already taken. The existence check is a pre-insert read, so two
// concurrent creates for the same name can race past it; the unique index
// is the backstop and surfaces as a constraint error from the insert.
func CreateWebsite(db *gorm.DB, logger *slog.Logger, website *Website) error {
	var existing Website
	err := db.Where("name = ?", website.Name).First(&existing).Error
	if err == nil {
		return &WebsiteExistsError{Name: website.Name}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("unexpected error checking website existence: %w", err)
	}

	website.CreatedAt = time.Now().UTC()
	return sqlitex.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(website).Error
	})
}

// GetWebsiteByName retrieves a website by its domain name.
func GetWebsiteByName(db *gorm.DB, name string) (*Website, error) {
	var website Website
	if err := db.Where("name = ?", name).First(&website).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &WebsiteNotFoundError{Name: name}
		}
		return nil, fmt.Errorf("unexpected error querying website: %w", err)
	}
	return &website, nil
}

// GetWebsitesByOwner retrieves all websites registered by one owner.
func GetWebsitesByOwner(db *gorm.DB, ownerID uint) ([]Website, error) {
	var sites []Website
	if err := db.Where("owner_id = ?", ownerID).Find(&sites).Error; err != nil {
		return nil, fmt.Errorf("failed to get websites: %w", err)
	}
	return sites, nil
}

// DeleteWebsite removes a website and every analytics row recorded for
// its domain. The website owns the lifecycle of its rows, so the delete
// cascades to page views, visits, and custom events.
func DeleteWebsite(db *gorm.DB, logger *slog.Logger, name string) error {
	website, err := GetWebsiteByName(db, name)
	if err != nil {
		return err
	}

	return sqlitex.PerformWrite(logger, db, func(tx *gorm.DB) error {
		if err := tx.Where("domain = ?", name).Delete(&events.PageView{}).Error; err != nil {
			return fmt.Errorf("failed to delete page views: %w", err)
		}
		if err := tx.Where("website_id = ?", name).Delete(&events.Visit{}).Error; err != nil {
			return fmt.Errorf("failed to delete visits: %w", err)
		}
		if err := tx.Where("website_id = ?", name).Delete(&events.CustomEvent{}).Error; err != nil {
			return fmt.Errorf("failed to delete custom events: %w", err)
		}
		return tx.Delete(website).Error
	})
}
