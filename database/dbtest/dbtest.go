// Package dbtest opens migrated in-memory stores for tests.
package dbtest

import (
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cropcheck/database"
	"cropcheck/entities"
	"cropcheck/pkg/reference"
)

// New returns a migrated in-memory SQLite store seeded with the default
// reference data. A single connection keeps the in-memory database shared.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.SeedReference(db, reference.Defaults()))
	return db
}

// FieldWithZone creates a field owned by uid with one zone.
func FieldWithZone(t testing.TB, db *gorm.DB, uid string) (entities.Field, entities.Zone) {
	t.Helper()
	f := entities.Field{UserID: uid, FieldName: "plot " + uid}
	require.NoError(t, db.Create(&f).Error)
	z := entities.Zone{FieldID: f.FieldID, ZoneName: "A", NumTrees: 40}
	require.NoError(t, db.Create(&z).Error)
	return f, z
}
