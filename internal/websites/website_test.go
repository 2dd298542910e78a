package websites_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analyzr/internal/events"
	"analyzr/internal/logging"
	"analyzr/internal/testsupport"
	"analyzr/internal/websites"
)

func TestCreateAndGetWebsite(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := logging.NewTestLogger()
	user := testsupport.CreateTestUser(t, db, "owner@example.com")

	website := &websites.Website{Name: "example.com", OwnerID: user.ID}
	require.NoError(t, websites.CreateWebsite(db, logger, website))
	assert.NotZero(t, website.ID)
	assert.False(t, website.CreatedAt.IsZero())

	found, err := websites.GetWebsiteByName(db, "example.com")
	require.NoError(t, err)
	assert.Equal(t, website.ID, found.ID)
	assert.Equal(t, user.ID, found.OwnerID)
}

func TestCreateWebsiteRejectsDuplicateName(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := logging.NewTestLogger()
	user := testsupport.CreateTestUser(t, db, "owner@example.com")

	require.NoError(t, websites.CreateWebsite(db, logger,
		&websites.Website{Name: "example.com", OwnerID: user.ID}))

	err := websites.CreateWebsite(db, logger,
		&websites.Website{Name: "example.com", OwnerID: user.ID})

	var exists *websites.WebsiteExistsError
	assert.ErrorAs(t, err, &exists)
}

func TestGetWebsiteByNameNotFound(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	_, err := websites.GetWebsiteByName(db, "missing.com")
	var notFound *websites.WebsiteNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing.com", notFound.Name)
}

func TestGetWebsitesByOwner(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	owner := testsupport.CreateTestUser(t, db, "owner@example.com")
	other := testsupport.CreateTestUser(t, db, "other@example.com")

	testsupport.CreateTestWebsite(t, db, "one.com", owner.ID)
	testsupport.CreateTestWebsite(t, db, "two.com", owner.ID)
	testsupport.CreateTestWebsite(t, db, "three.com", other.ID)

	sites, err := websites.GetWebsitesByOwner(db, owner.ID)
	require.NoError(t, err)
	assert.Len(t, sites, 2)
}

func TestDeleteWebsiteCascadesToAnalyticsRows(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := logging.NewTestLogger()
	user := testsupport.CreateTestUser(t, db, "owner@example.com")
	testsupport.CreateTestWebsite(t, db, "example.com", user.ID)
	testsupport.CreateTestWebsite(t, db, "other.com", user.ID)

	testsupport.CreateTestPageView(t, db, "example.com")
	testsupport.CreateTestPageView(t, db, "other.com")
	testsupport.CreateTestVisit(t, db, "example.com")
	require.NoError(t, db.Create(&events.CustomEvent{
		EventName: "signup", WebsiteID: "example.com",
	}).Error)

	require.NoError(t, websites.DeleteWebsite(db, logger, "example.com"))

	_, err := websites.GetWebsiteByName(db, "example.com")
	var notFound *websites.WebsiteNotFoundError
	assert.ErrorAs(t, err, &notFound)

	var pageViews, visits, customEvents int64
	require.NoError(t, db.Model(&events.PageView{}).Count(&pageViews).Error)
	require.NoError(t, db.Model(&events.Visit{}).Count(&visits).Error)
	require.NoError(t, db.Model(&events.CustomEvent{}).Count(&customEvents).Error)

	// Only other.com's page view survives.
	assert.EqualValues(t, 1, pageViews)
	assert.Zero(t, visits)
	assert.Zero(t, customEvents)

	// The untouched site is still there.
	_, err = websites.GetWebsiteByName(db, "other.com")
	assert.NoError(t, err)
}

func TestDeleteWebsiteNotFound(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := logging.NewTestLogger()

	err := websites.DeleteWebsite(db, logger, "missing.com")
	var notFound *websites.WebsiteNotFoundError
	assert.ErrorAs(t, err, &notFound)
}
