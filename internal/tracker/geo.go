package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/pariz/gountries"

	"analyzr/internal/events"
)

// Location is the resolved city/region/country bundle for one client IP.
type Location struct {
	City    string
	Region  string
	Country string
}

// UnknownLocation is the safe default used whenever a lookup fails.
var UnknownLocation = Location{
	City:    events.UnknownValue,
	Region:  events.UnknownValue,
	Country: events.UnknownValue,
}

// Locator resolves an IP address to a location. Implementations never
// return an error: lookup failure degrades to UnknownLocation so the
// tracked event is still sent.
type Locator interface {
	Locate(ip string) Location
}

// NoopLocator always reports an unknown location.
type NoopLocator struct{}

func (NoopLocator) Locate(string) Location {
	return UnknownLocation
}

// HTTPLocator queries an ipapi-style JSON endpoint. The lookup carries
// an explicit timeout and is aborted when it elapses.
type HTTPLocator struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewHTTPLocator creates a locator for an ipapi-compatible service, e.g.
// base URL "https://ipapi.co".
func NewHTTPLocator(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPLocator {
	return &HTTPLocator{
		baseURL: baseURL,
		client:  &http.Client{},
		timeout: timeout,
		logger:  logger,
	}
}

type ipapiResponse struct {
	City        string `json:"city"`
	Region      string `json:"region"`
	CountryName string `json:"country_name"`
}

func (l *HTTPLocator) Locate(ip string) Location {
	url := l.baseURL + "/json/"
	if ip != "" {
		url = fmt.Sprintf("%s/%s/json/", l.baseURL, ip)
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		l.logger.Debug("Failed to build geolocation request", slog.Any("error", err))
		return UnknownLocation
	}

	resp, err := l.client.Do(req)
	if err != nil {
		l.logger.Debug("Geolocation lookup failed", slog.Any("error", err))
		return UnknownLocation
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		l.logger.Debug("Geolocation lookup returned non-200",
			slog.Int("status", resp.StatusCode))
		return UnknownLocation
	}

	var body ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		l.logger.Debug("Failed to decode geolocation response", slog.Any("error", err))
		return UnknownLocation
	}

	return Location{
		City:    orUnknown(body.City),
		Region:  orUnknown(body.Region),
		Country: orUnknown(body.CountryName),
	}
}

// GeoLiteLocator resolves locations from a local GeoLite2 City database,
// avoiding the per-event network round-trip of HTTPLocator.
type GeoLiteLocator struct {
	reader    *geoip2.Reader
	countries *gountries.Query
	logger    *slog.Logger
}

// NewGeoLiteLocator opens the GeoLite2 database at path. A missing or
// unreadable database returns an error; callers typically fall back to
// another locator.
func NewGeoLiteLocator(path string, logger *slog.Logger) (*GeoLiteLocator, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoLite2 database: %w", err)
	}
	return &GeoLiteLocator{
		reader:    reader,
		countries: gountries.New(),
		logger:    logger,
	}, nil
}

func (l *GeoLiteLocator) Locate(ip string) Location {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return UnknownLocation
	}

	record, err := l.reader.City(parsed)
	if err != nil {
		l.logger.Debug("GeoLite2 lookup failed",
			slog.String("ip", ip), slog.Any("error", err))
		return UnknownLocation
	}

	location := UnknownLocation
	if name := record.City.Names["en"]; name != "" {
		location.City = name
	}
	if len(record.Subdivisions) > 0 {
		if name := record.Subdivisions[0].Names["en"]; name != "" {
			location.Region = name
		}
	}
	if iso := record.Country.IsoCode; iso != "" {
		if country, err := l.countries.FindCountryByAlpha(iso); err == nil {
			location.Country = country.Name.Common
		} else if name := record.Country.Names["en"]; name != "" {
			location.Country = name
		}
	}
	return location
}

// Close releases the underlying database handle.
func (l *GeoLiteLocator) Close() error {
	return l.reader.Close()
}

func orUnknown(value string) string {
	if value == "" {
		return events.UnknownValue
	}
	return value
}
