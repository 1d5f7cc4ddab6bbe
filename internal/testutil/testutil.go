// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"testing"
	"time"

	"chif/internal/database"
	"chif/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// JWTSecret signs tokens minted by SignToken.
const JWTSecret = "test-secret-key-12345678901234567890123456789012"

// NewDB opens a private in-memory SQLite database with every model migrated.
// A single connection keeps the shared-cache database alive and serializes
// transactions.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// SeedSites inserts the three stock tenants: main (default), school and youth.
func SeedSites(t testing.TB, db *gorm.DB) (main, school, youth models.Site) {
	t.Helper()
	main = models.Site{Key: "main", HostPattern: "chif.life", Name: "CHIF", IsDefault: true, IsActive: true, Priority: 100}
	school = models.Site{Key: "school", HostPattern: "school.chif.life", Name: "CHIF School", IsActive: true, Priority: 10}
	youth = models.Site{Key: "youth", HostPattern: "youth.chif.life", Name: "CHIF Youth", IsActive: true, Priority: 20}
	for _, s := range []*models.Site{&main, &school, &youth} {
		require.NoError(t, db.Create(s).Error)
	}
	return main, school, youth
}

// SignToken mints an HS256 session token with sub and role claims.
func SignToken(t testing.TB, sub, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(JWTSecret))
	require.NoError(t, err)
	return s
}
