package jobs

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analyzr/internal/config"
	"analyzr/internal/database"
	"analyzr/internal/events"
	"analyzr/internal/logging"
)

func setupManager(t *testing.T, retentionDays int) (*database.Manager, *config.Config) {
	t.Helper()

	cfg := &config.Config{
		AppName:             "analyzr",
		Environment:         config.Test,
		DatabaseName:        filepath.Join(t.TempDir(), "jobs-test.db"),
		EventsRetentionDays: retentionDays,
	}
	manager := database.NewManager(cfg, logging.NewTestLogger())
	require.NoError(t, manager.Init())
	require.NoError(t, manager.Migrate())
	t.Cleanup(func() { manager.Close() })
	return manager, cfg
}

func TestRetentionJobDeletesOldRows(t *testing.T) {
	manager, cfg := setupManager(t, 30)
	db := manager.GetConnection()
	now := time.Now().UTC()

	require.NoError(t, db.Create(&events.PageView{
		Domain: "example.com", Page: "https://example.com/",
		CreatedAt: now.AddDate(0, 0, -40),
	}).Error)
	require.NoError(t, db.Create(&events.PageView{
		Domain: "example.com", Page: "https://example.com/",
		CreatedAt: now.AddDate(0, 0, -5),
	}).Error)
	require.NoError(t, db.Create(&events.Visit{
		WebsiteID: "example.com", CreatedAt: now.AddDate(0, 0, -40),
	}).Error)

	job := NewRetentionJob(manager, logging.NewTestLogger(), cfg)
	require.NoError(t, job.Run())

	var pageViews, visits int64
	require.NoError(t, db.Model(&events.PageView{}).Count(&pageViews).Error)
	require.NoError(t, db.Model(&events.Visit{}).Count(&visits).Error)
	assert.EqualValues(t, 1, pageViews)
	assert.Zero(t, visits)
}

func TestRetentionJobDisabledKeepsEverything(t *testing.T) {
	manager, cfg := setupManager(t, 0)
	db := manager.GetConnection()

	require.NoError(t, db.Create(&events.PageView{
		Domain: "example.com", Page: "https://example.com/",
		CreatedAt: time.Now().UTC().AddDate(-1, 0, 0),
	}).Error)

	job := NewRetentionJob(manager, logging.NewTestLogger(), cfg)
	require.NoError(t, job.Run())

	var count int64
	require.NoError(t, db.Model(&events.PageView{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCheckpointJobRuns(t *testing.T) {
	manager, _ := setupManager(t, 0)

	job := NewCheckpointJob(manager, logging.NewTestLogger())
	assert.NoError(t, job.Run())
}
