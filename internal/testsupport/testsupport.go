// Package testsupport provides shared helpers for package tests: an
// isolated in-memory database per test, fixtures, and table cleanup.
package testsupport

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"analyzr/internal/database"
	"analyzr/internal/events"
	"analyzr/internal/users"
	"analyzr/internal/websites"
)

// testDBCache caches test databases by test name so multiple calls
// within the same test share the same database.
var (
	testDBCache   = make(map[string]*gorm.DB)
	testDBCacheMu sync.Mutex
)

// SetupTestDB creates a migrated database for the test. Each root test
// gets its own named in-memory database with cache=shared so every
// connection inside the test sees the same data.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Subtests share the root test's database; closures created during
	// setup capture the outer t while t.Run hands subtests their own.
	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	defer testDBCacheMu.Unlock()

	if db, ok := testDBCache[rootName]; ok {
		return db
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", sanitizeDBName(rootName))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "failed to open test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps the shared in-memory database alive and
	// serializes writes, matching the test pool settings.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(database.AllModels()...),
		"failed to migrate test database")

	testDBCache[rootName] = db
	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB.Close()
	})

	return db
}

func sanitizeDBName(name string) string {
	replacer := strings.NewReplacer("/", "_", " ", "_", "#", "_", "?", "_", "&", "_")
	return replacer.Replace(name)
}

// CleanAllTables truncates every model table between test cases.
func CleanAllTables(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, model := range database.AllModels() {
		require.NoError(t, db.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(model).Error)
	}
}

// CreateTestUser inserts a user with a bcrypt-hashed password and a
// fresh API key.
func CreateTestUser(t *testing.T, db *gorm.DB, email string) *users.User {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte("test-password"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &users.User{
		Email:             email,
		EncryptedPassword: string(hashed),
		APIKey:            users.GenerateAPIKey(),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateTestWebsite inserts a website owned by the given user.
func CreateTestWebsite(t *testing.T, db *gorm.DB, name string, ownerID uint) *websites.Website {
	t.Helper()

	website := &websites.Website{Name: name, OwnerID: ownerID}
	require.NoError(t, db.Create(website).Error)
	return website
}

// CreateTestPageView inserts a page view row with sensible defaults,
// applying any mutations first.
func CreateTestPageView(t *testing.T, db *gorm.DB, domain string, mutate ...func(*events.PageView)) *events.PageView {
	t.Helper()

	row := &events.PageView{
		Domain:          domain,
		Page:            "https://" + domain + "/",
		City:            events.UnknownValue,
		Region:          events.UnknownValue,
		Country:         events.UnknownValue,
		OperatingSystem: events.UnknownValue,
		DeviceType:      events.UnknownValue,
		BrowserName:     events.UnknownValue,
	}
	for _, m := range mutate {
		m(row)
	}
	require.NoError(t, db.Create(row).Error)
	return row
}

// CreateTestVisit inserts a visit row, applying any mutations first.
func CreateTestVisit(t *testing.T, db *gorm.DB, domain string, mutate ...func(*events.Visit)) *events.Visit {
	t.Helper()

	row := &events.Visit{
		WebsiteID: domain,
		Source:    events.DirectSource,
	}
	for _, m := range mutate {
		m(row)
	}
	require.NoError(t, db.Create(row).Error)
	return row
}
