// Package analytics is the in-memory aggregation engine. Every function
// is a pure projection of its input row sets: no hidden state, safe to
// recompute on every dashboard filter change.
package analytics

// GroupedPage is the tally of page views per distinct path.
type GroupedPage struct {
	Page   string `json:"page"`
	Visits int    `json:"visits"`
}

// GroupedSource is the tally of visits per referrer source, with each
// source's share of the total as a percentage.
type GroupedSource struct {
	Source     string  `json:"source"`
	Visits     int     `json:"visits"`
	Percentage float64 `json:"percentage"`
}

// GroupedLocation is the tally of page views per city/region/country triple.
type GroupedLocation struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
	Visits  int    `json:"visits"`
}

// GroupedCountry collapses the location breakdown to countries.
type GroupedCountry struct {
	Country string `json:"country"`
	Visits  int    `json:"visits"`
}

// GroupedOS is the tally of page views per operating system.
type GroupedOS struct {
	OperatingSystem string `json:"operating_system"`
	Visits          int    `json:"visits"`
}

// GroupedDevice is the tally of page views per device type.
type GroupedDevice struct {
	DeviceType string `json:"device_type"`
	Count      int    `json:"count"`
}

// GroupedBrowser is the tally of page views per browser.
type GroupedBrowser struct {
	Browser string `json:"browser"`
	Count   int    `json:"count"`
}

// TimePoint is one bucket of the merged pageview/visit time series.
type TimePoint struct {
	Label     string `json:"date"`
	PageViews int    `json:"pageViews"`
	Visits    int    `json:"visits"`
}
