package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	v1 "analyzr/api/v1"
	"analyzr/internal/config"
	"analyzr/internal/events"
	"analyzr/internal/logging"
	"analyzr/internal/notify"
	"analyzr/internal/testsupport"
	"analyzr/internal/users"
)

// fakeNotifier records notifications and optionally fails.
type fakeNotifier struct {
	fail  bool
	calls []notify.EventNotification
	ids   []string
}

func (f *fakeNotifier) NotifyEvent(_ context.Context, externalID string, n notify.EventNotification) error {
	f.ids = append(f.ids, externalID)
	f.calls = append(f.calls, n)
	if f.fail {
		return errors.New("discord unavailable")
	}
	return nil
}

func setupApp(t *testing.T, db *gorm.DB, notifier notify.Notifier) *fiber.App {
	t.Helper()

	handler := v1.NewHandler(db, logging.NewTestLogger(), config.GetConfig(), notifier, nil)

	app := fiber.New()
	app.Post("/api/v1/track", handler.Track)
	app.Post("/api/v1/events", handler.CreateEvent)
	app.Get("/api/v1/events", handler.ListEvents)
	app.Get("/api/v1/stats", handler.Stats)
	app.Get("/api/v1/active-users", handler.ActiveUsers)
	app.Post("/api/v1/websites", handler.CreateWebsite)
	app.Get("/api/v1/websites", handler.ListWebsites)
	app.Delete("/api/v1/websites/:name", handler.DeleteWebsite)
	return app
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestTrackRecordsPageView(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := setupApp(t, db, nil)

	req := jsonRequest(http.MethodPost, "/api/v1/track", map[string]any{
		"domain":          "example.com",
		"url":             "https://example.com/pricing",
		"event":           "pageview",
		"city":            "Lisbon",
		"operatingSystem": "MacOS",
		"deviceType":      "laptop",
		"browserName":     "Firefox",
	})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])

	var row events.PageView
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, "Lisbon", row.City)
	assert.Equal(t, "laptop", row.DeviceType)
}

func TestTrackRejectsDomainMismatch(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := setupApp(t, db, nil)

	req := jsonRequest(http.MethodPost, "/api/v1/track", map[string]any{
		"domain": "example.com",
		"url":    "https://spoofed.com/page",
		"event":  "pageview",
	})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Domain mismatch", decodeBody(t, resp)["error"])

	var count int64
	require.NoError(t, db.Model(&events.PageView{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestTrackRejectsUnknownEvent(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := setupApp(t, db, nil)

	req := jsonRequest(http.MethodPost, "/api/v1/track", map[string]any{
		"domain": "example.com",
		"url":    "https://example.com/",
		"event":  "purchase",
	})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTrackRecordsVisitOnSessionStart(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := setupApp(t, db, nil)

	req := jsonRequest(http.MethodPost, "/api/v1/track", map[string]any{
		"domain": "example.com",
		"url":    "https://example.com/",
		"event":  "session_start",
		"source": "google.com",
	})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var row events.Visit
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, "google.com", row.Source)
}

func TestCreateEventRequiresBearerToken(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := setupApp(t, db, nil)

	req := jsonRequest(http.MethodPost, "/api/v1/events", map[string]any{
		"name": "signup", "domain": "example.com", "description": "x",
	})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthorized - Invalid API", decodeBody(t, resp)["error"])
}

func TestCreateEventRejectsUnknownAPIKey(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := setupApp(t, db, nil)

	req := jsonRequest(http.MethodPost, "/api/v1/events", map[string]any{
		"name": "signup", "domain": "example.com", "description": "x",
	})
	req.Header.Set("Authorization", "Bearer not-a-key")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCreateEventRejectsEmptyFields(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	user := testsupport.CreateTestUser(t, db, "owner@example.com")
	app := setupApp(t, db, nil)

	for _, body := range []map[string]any{
		{"domain": "example.com", "description": "x"},
		{"name": "signup", "description": "x"},
		{"name": "signup", "domain": "example.com"},
	} {
		req := jsonRequest(http.MethodPost, "/api/v1/events", body)
		req.Header.Set("Authorization", "Bearer "+user.APIKey)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Name, Domain, and Description Fields Must NOT Be Empty.",
			decodeBody(t, resp)["error"])
	}

	var count int64
	require.NoError(t, db.Model(&events.CustomEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateEventWithoutDiscordLink(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	user := testsupport.CreateTestUser(t, db, "owner@example.com")
	notifier := &fakeNotifier{}
	app := setupApp(t, db, notifier)

	req := jsonRequest(http.MethodPost, "/api/v1/events", map[string]any{
		"name": "signup", "domain": "example.com", "description": "New account",
	})
	req.Header.Set("Authorization", "Bearer "+user.APIKey)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success without discord notification", decodeBody(t, resp)["message"])
	assert.Empty(t, notifier.calls)

	var row events.CustomEvent
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, "signup", row.EventName)
	assert.Equal(t, "example.com", row.WebsiteID)
}

func TestCreateEventNotifiesLinkedDiscord(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := logging.NewTestLogger()
	user := testsupport.CreateTestUser(t, db, "owner@example.com")
	require.NoError(t, users.LinkDiscord(db, logger, user.ID, "discord-123"))

	notifier := &fakeNotifier{}
	app := setupApp(t, db, notifier)

	req := jsonRequest(http.MethodPost, "/api/v1/events", map[string]any{
		"name":        "signup",
		"domain":      "example.com",
		"description": "New account",
		"fields":      []map[string]any{{"name": "plan", "value": "pro"}},
	})
	req.Header.Set("Authorization", "Bearer "+user.APIKey)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success with discord notification", decodeBody(t, resp)["message"])

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, []string{"discord-123"}, notifier.ids)
	assert.Equal(t, "🔔 New Event: signup", notifier.calls[0].Title)
	assert.Equal(t, "New account", notifier.calls[0].Description)

	fields := notifier.calls[0].Fields
	require.NotEmpty(t, fields)
	assert.Equal(t, notify.EmbedField{Name: "Domain", Value: "example.com", Inline: true}, fields[0])
	assert.Equal(t, notify.EmbedField{Name: "plan", Value: "pro"}, fields[1])
}

func TestCreateEventSurvivesNotificationFailure(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := logging.NewTestLogger()
	user := testsupport.CreateTestUser(t, db, "owner@example.com")
	require.NoError(t, users.LinkDiscord(db, logger, user.ID, "discord-123"))

	notifier := &fakeNotifier{fail: true}
	app := setupApp(t, db, notifier)

	req := jsonRequest(http.MethodPost, "/api/v1/events", map[string]any{
		"name": "signup", "domain": "example.com", "description": "New account",
	})
	req.Header.Set("Authorization", "Bearer "+user.APIKey)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Event recorded but Discord notification failed",
		decodeBody(t, resp)["message"])

	// The event is persisted even when the notification fails.
	var count int64
	require.NoError(t, db.Model(&events.CustomEvent{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestListEvents(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	user := testsupport.CreateTestUser(t, db, "owner@example.com")
	app := setupApp(t, db, nil)

	require.NoError(t, db.Create(&events.CustomEvent{
		EventName: "signup", WebsiteID: "example.com", CreatedAt: time.Now().UTC(),
	}).Error)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("Authorization", "Bearer "+user.APIKey)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The list is served as a bare array.
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "signup", list[0]["event_name"])
}

func TestStatsReturnsAggregates(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	user := testsupport.CreateTestUser(t, db, "owner@example.com")
	testsupport.CreateTestWebsite(t, db, "example.com", user.ID)
	app := setupApp(t, db, nil)

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		testsupport.CreateTestPageView(t, db, "example.com", func(r *events.PageView) {
			r.Page = "https://example.com/pricing"
			r.DeviceType = "mobile"
			r.CreatedAt = now.Add(-time.Hour)
		})
	}
	testsupport.CreateTestVisit(t, db, "example.com", func(r *events.Visit) {
		r.Source = "google.com"
		r.CreatedAt = now.Add(-time.Hour)
	})

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/stats?domain=example.com&filter=last+7+days", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.EqualValues(t, 3, body["pageViews"])
	assert.EqualValues(t, 1, body["visits"])
	assert.Equal(t, "3.0", body["pagesPerSession"])

	devices, ok := body["groupedDevices"].([]any)
	require.True(t, ok)
	require.Len(t, devices, 1)
	assert.Equal(t, "Mobile", devices[0].(map[string]any)["device_type"])

	sources, ok := body["groupedSources"].([]any)
	require.True(t, ok)
	require.Len(t, sources, 1)
	assert.Equal(t, "google.com", sources[0].(map[string]any)["source"])
}

func TestStatsUnknownWebsite(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := setupApp(t, db, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats?domain=missing.com", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatsRejectsBadFilter(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := setupApp(t, db, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/stats?domain=example.com&filter=last+week", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestActiveUsersCountsRecentPageViews(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := setupApp(t, db, nil)

	now := time.Now().UTC()
	testsupport.CreateTestPageView(t, db, "example.com", func(r *events.PageView) {
		r.CreatedAt = now.Add(-time.Minute)
	})
	testsupport.CreateTestPageView(t, db, "example.com", func(r *events.PageView) {
		r.CreatedAt = now.Add(-2 * time.Hour)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/active-users?domain=example.com", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, decodeBody(t, resp)["activeUsers"])
}

func TestWebsiteLifecycleOverHTTP(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	user := testsupport.CreateTestUser(t, db, "owner@example.com")
	app := setupApp(t, db, nil)

	req := jsonRequest(http.MethodPost, "/api/v1/websites", map[string]any{"name": "example.com"})
	req.Header.Set("Authorization", "Bearer "+user.APIKey)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Duplicate registration conflicts.
	req = jsonRequest(http.MethodPost, "/api/v1/websites", map[string]any{"name": "example.com"})
	req.Header.Set("Authorization", "Bearer "+user.APIKey)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/websites", nil)
	req.Header.Set("Authorization", "Bearer "+user.APIKey)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	list, ok := decodeBody(t, resp)["websites"].([]any)
	require.True(t, ok)
	assert.Len(t, list, 1)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/websites/example.com", nil)
	req.Header.Set("Authorization", "Bearer "+user.APIKey)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDeleteWebsiteRequiresOwnership(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	owner := testsupport.CreateTestUser(t, db, "owner@example.com")
	intruder := testsupport.CreateTestUser(t, db, "intruder@example.com")
	testsupport.CreateTestWebsite(t, db, "example.com", owner.ID)
	app := setupApp(t, db, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/websites/example.com", nil)
	req.Header.Set("Authorization", "Bearer "+intruder.APIKey)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
