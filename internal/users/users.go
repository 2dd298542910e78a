// Package users manages dashboard accounts, their API keys, and linked
// notification identities.
package users

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"analyzr/internal/pkg/sqlitex"
)

// User is a dashboard account. APIKey authenticates the custom-event
// endpoint; DiscordID, when set, is the DM target for event notifications.
type User struct {
	ID                uint   `gorm:"primaryKey;autoIncrement"`
	Email             string `gorm:"uniqueIndex;not null"`
	EncryptedPassword string `gorm:"not null"`
	APIKey            string `gorm:"uniqueIndex;not null"`
	DiscordID         string `gorm:"index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ErrUserExists is returned when attempting to create a user that already exists.
var ErrUserExists = errors.New("user already exists")

// ErrUnknownAPIKey is returned when an API key resolves to no user.
var ErrUnknownAPIKey = errors.New("unknown api key")

// FindByEmail retrieves a user by email.
func FindByEmail(db *gorm.DB, email string) (*User, error) {
	var user User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByAPIKey resolves an API key to its owning user. Unknown keys
// return ErrUnknownAPIKey.
func FindByAPIKey(db *gorm.DB, apiKey string) (*User, error) {
	if apiKey == "" {
		return nil, ErrUnknownAPIKey
	}
	var user User
	if err := db.Where("api_key = ?", apiKey).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownAPIKey
		}
		return nil, fmt.Errorf("unexpected error querying user by api key: %w", err)
	}
	return &user, nil
}

// CreateUser creates a new account with a hashed password and a fresh
// API key. Returns ErrUserExists if the email is taken.
func CreateUser(db *gorm.DB, logger *slog.Logger, email, password string) (*User, error) {
	if email == "" {
		return nil, errors.New("email cannot be empty")
	}
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}

	if _, err := FindByEmail(db, email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		Email:             email,
		EncryptedPassword: string(hashed),
		APIKey:            GenerateAPIKey(),
	}
	if err := sqlitex.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(user).Error
	}); err != nil {
		return nil, err
	}
	return user, nil
}

// LinkDiscord stores the Discord account id notifications are delivered to.
func LinkDiscord(db *gorm.DB, logger *slog.Logger, userID uint, discordID string) error {
	return sqlitex.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Model(&User{}).Where("id = ?", userID).
			Update("discord_id", discordID).Error
	})
}

// RotateAPIKey replaces a user's API key and returns the new value.
func RotateAPIKey(db *gorm.DB, logger *slog.Logger, userID uint) (string, error) {
	key := GenerateAPIKey()
	err := sqlitex.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Model(&User{}).Where("id = ?", userID).
			Update("api_key", key).Error
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// GenerateAPIKey returns a new opaque API key.
func GenerateAPIKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
