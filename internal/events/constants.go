package events

// Defaults substituted for missing classification and referrer values.
const (
	UnknownValue = "Unknown"
	DirectSource = "direct"
	DefaultEmoji = "🔔"
)
