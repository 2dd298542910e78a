package events

import "time"

// EventKind is the tracking event discriminator sent by the snippet.
type EventKind string

const (
	EventKindPageView     EventKind = "pageview"
	EventKindSessionStart EventKind = "session_start"
	EventKindSessionEnd   EventKind = "session_end"
)

// Valid reports whether k is one of the three accepted kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventKindPageView, EventKindSessionStart, EventKindSessionEnd:
		return true
	}
	return false
}

// PageView is one recorded navigation event. Rows are immutable once written.
type PageView struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Domain          string    `gorm:"index:idx_pv_domain_created;not null" json:"domain"`
	Page            string    `gorm:"not null" json:"page"`
	City            string    `gorm:"not null;default:'Unknown'" json:"city"`
	Region          string    `gorm:"not null;default:'Unknown'" json:"region"`
	Country         string    `gorm:"not null;default:'Unknown'" json:"country"`
	OperatingSystem string    `gorm:"not null;default:'Unknown'" json:"operating_system"`
	DeviceType      string    `gorm:"not null;default:'Unknown'" json:"device_type"`
	BrowserName     string    `gorm:"not null;default:'Unknown'" json:"browser_name"`
	CreatedAt       time.Time `gorm:"index:idx_pv_domain_created" json:"created_at"`
}

// Visit is one recorded session-start marker, carrying the referrer source.
type Visit struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	WebsiteID string    `gorm:"index;not null" json:"website_id"` // tenant key: the website domain
	Source    string    `gorm:"not null;default:'direct'" json:"source"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// EventField is one name/value pair attached to a custom event.
type EventField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// CustomEvent is an application-defined event submitted through the
// authenticated API, optionally mirrored to Discord.
type CustomEvent struct {
	ID        uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	EventName string       `gorm:"index;not null" json:"event_name"`
	WebsiteID string       `gorm:"index;not null" json:"website_id"`
	Message   string       `gorm:"type:text" json:"message"`
	Fields    []EventField `gorm:"serializer:json" json:"fields"`
	CreatedAt time.Time    `json:"created_at"`
}
