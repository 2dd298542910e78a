package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"analyzr/internal/events"
	"analyzr/internal/timeframe"
)

// FilterPageViews retains page views at or after the window cutoff.
func FilterPageViews(rows []events.PageView, window timeframe.Window, now time.Time) []events.PageView {
	if window.Lifetime() {
		return rows
	}
	out := make([]events.PageView, 0, len(rows))
	for _, row := range rows {
		if window.Contains(row.CreatedAt, now) {
			out = append(out, row)
		}
	}
	return out
}

// FilterVisits retains visits at or after the window cutoff.
func FilterVisits(rows []events.Visit, window timeframe.Window, now time.Time) []events.Visit {
	if window.Lifetime() {
		return rows
	}
	out := make([]events.Visit, 0, len(rows))
	for _, row := range rows {
		if window.Contains(row.CreatedAt, now) {
			out = append(out, row)
		}
	}
	return out
}

// GroupPageViews strips each page down to its path, tallies occurrences
// per distinct path, and sorts descending by count. Ties keep
// first-encountered order.
func GroupPageViews(rows []events.PageView) []GroupedPage {
	counts := make(map[string]int, len(rows))
	order := make([]string, 0, len(rows))

	for _, row := range rows {
		path := pathOf(row.Page)
		if _, seen := counts[path]; !seen {
			order = append(order, path)
		}
		counts[path]++
	}

	grouped := make([]GroupedPage, 0, len(order))
	for _, path := range order {
		grouped = append(grouped, GroupedPage{Page: path, Visits: counts[path]})
	}
	sort.SliceStable(grouped, func(i, j int) bool {
		return grouped[i].Visits > grouped[j].Visits
	})
	return grouped
}

// GroupSources tallies visits by source, treating empty sources as
// "direct", and computes each source's share of the total to one decimal.
func GroupSources(rows []events.Visit) []GroupedSource {
	counts := make(map[string]int, len(rows))
	order := make([]string, 0, len(rows))

	for _, row := range rows {
		source := row.Source
		if source == "" {
			source = events.DirectSource
		}
		if _, seen := counts[source]; !seen {
			order = append(order, source)
		}
		counts[source]++
	}

	total := len(rows)
	grouped := make([]GroupedSource, 0, len(order))
	for _, source := range order {
		entry := GroupedSource{Source: source, Visits: counts[source]}
		if total > 0 {
			entry.Percentage = roundOneDecimal(float64(counts[source]) * 100 / float64(total))
		}
		grouped = append(grouped, entry)
	}
	sort.SliceStable(grouped, func(i, j int) bool {
		return grouped[i].Visits > grouped[j].Visits
	})
	return grouped
}

// GroupLocations tallies page views by city/region/country triple.
func GroupLocations(rows []events.PageView) []GroupedLocation {
	type key struct{ city, region, country string }
	counts := make(map[key]int, len(rows))
	order := make([]key, 0, len(rows))

	for _, row := range rows {
		k := key{
			city:    valueOrUnknown(row.City),
			region:  valueOrUnknown(row.Region),
			country: valueOrUnknown(row.Country),
		}
		if _, seen := counts[k]; !seen {
			order = append(order, k)
		}
		counts[k]++
	}

	grouped := make([]GroupedLocation, 0, len(order))
	for _, k := range order {
		grouped = append(grouped, GroupedLocation{
			City:    k.city,
			Region:  k.region,
			Country: k.country,
			Visits:  counts[k],
		})
	}
	sort.SliceStable(grouped, func(i, j int) bool {
		return grouped[i].Visits > grouped[j].Visits
	})
	return grouped
}

// GroupCountries collapses city/region detail by summing page views per
// country.
func GroupCountries(rows []events.PageView) []GroupedCountry {
	counts := make(map[string]int, len(rows))
	order := make([]string, 0, len(rows))

	for _, row := range rows {
		country := valueOrUnknown(row.Country)
		if _, seen := counts[country]; !seen {
			order = append(order, country)
		}
		counts[country]++
	}

	grouped := make([]GroupedCountry, 0, len(order))
	for _, country := range order {
		grouped = append(grouped, GroupedCountry{Country: country, Visits: counts[country]})
	}
	sort.SliceStable(grouped, func(i, j int) bool {
		return grouped[i].Visits > grouped[j].Visits
	})
	return grouped
}

// GroupOS tallies page views by operating system.
func GroupOS(rows []events.PageView) []GroupedOS {
	counts := make(map[string]int, len(rows))
	order := make([]string, 0, len(rows))

	for _, row := range rows {
		os := valueOrUnknown(row.OperatingSystem)
		if _, seen := counts[os]; !seen {
			order = append(order, os)
		}
		counts[os]++
	}

	grouped := make([]GroupedOS, 0, len(order))
	for _, os := range order {
		grouped = append(grouped, GroupedOS{OperatingSystem: os, Visits: counts[os]})
	}
	sort.SliceStable(grouped, func(i, j int) bool {
		return grouped[i].Visits > grouped[j].Visits
	})
	return grouped
}

// GroupDevices tallies page views by device type.
func GroupDevices(rows []events.PageView) []GroupedDevice {
	counts := make(map[string]int, len(rows))
	order := make([]string, 0, len(rows))

	for _, row := range rows {
		device := valueOrUnknown(row.DeviceType)
		if _, seen := counts[device]; !seen {
			order = append(order, device)
		}
		counts[device]++
	}

	grouped := make([]GroupedDevice, 0, len(order))
	for _, device := range order {
		grouped = append(grouped, GroupedDevice{DeviceType: device, Count: counts[device]})
	}
	sort.SliceStable(grouped, func(i, j int) bool {
		return grouped[i].Count > grouped[j].Count
	})
	return grouped
}

// GroupBrowsers tallies page views by browser name.
func GroupBrowsers(rows []events.PageView) []GroupedBrowser {
	counts := make(map[string]int, len(rows))
	order := make([]string, 0, len(rows))

	for _, row := range rows {
		browser := valueOrUnknown(row.BrowserName)
		if _, seen := counts[browser]; !seen {
			order = append(order, browser)
		}
		counts[browser]++
	}

	grouped := make([]GroupedBrowser, 0, len(order))
	for _, browser := range order {
		grouped = append(grouped, GroupedBrowser{Browser: browser, Count: counts[browser]})
	}
	sort.SliceStable(grouped, func(i, j int) bool {
		return grouped[i].Count > grouped[j].Count
	})
	return grouped
}

// pathOf strips the scheme and host from a recorded page down to its
// path, without the leading slash. Pages with no path separator are
// returned as-is.
func pathOf(page string) string {
	rest := page
	for {
		if strings.HasPrefix(rest, "//") {
			rest = rest[2:]
			continue
		}
		i := strings.IndexByte(rest, '/')
		if i < 0 {
			return rest
		}
		if i == 0 {
			return rest[1:]
		}
		rest = rest[i:]
	}
}

func valueOrUnknown(value string) string {
	if value == "" {
		return events.UnknownValue
	}
	return value
}

func roundOneDecimal(value float64) float64 {
	return math.Round(value*10) / 10
}
