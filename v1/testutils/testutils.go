package testutils

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	v1 "github.com/booklane/library-backend/v1"
	"github.com/booklane/library-backend/v1/models"
)

// SetupTestDB creates an in-memory SQLite database with the full schema,
// including the partial unique index on open loans
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, v1.Migrate(db))
	return db
}

// FixedClock returns a clock function pinned to the given instant
func FixedClock(instant time.Time) func() time.Time {
	return func() time.Time { return instant }
}

// SeedMember creates a login identity with a Member profile
func SeedMember(t *testing.T, db *gorm.DB, username string) models.MemberProfile {
	t.Helper()
	return SeedProfile(t, db, username, models.RoleMember)
}

// SeedProfile creates a login identity with a profile in the given role
func SeedProfile(t *testing.T, db *gorm.DB, username string, role models.Role) models.MemberProfile {
	t.Helper()

	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "not-a-real-hash",
	}
	require.NoError(t, db.Create(&user).Error)

	profile := models.MemberProfile{
		UserID:       user.ID,
		Role:         role,
		MembershipID: uuid.New().String(),
		IsActive:     true,
		JoinedDate:   models.Today(time.Now()),
	}
	require.NoError(t, db.Create(&profile).Error)

	profile.User = user
	return profile
}

// SeedBook creates a title under a fresh category with the named authors
func SeedBook(t *testing.T, db *gorm.DB, title string, authorNames ...string) models.Book {
	t.Helper()

	category := models.Category{Name: "General"}
	require.NoError(t, db.Create(&category).Error)

	authors := make([]models.Author, 0, len(authorNames))
	for _, name := range authorNames {
		authors = append(authors, models.Author{Name: name})
	}

	book := models.Book{
		Title:      title,
		ISBN:       fmt.Sprintf("isbn-%s", uuid.New().String()[:8]),
		CategoryID: category.ID,
		Authors:    authors,
	}
	require.NoError(t, db.Create(&book).Error)
	return book
}

// SeedCopy creates a physical copy in the given lending status
func SeedCopy(t *testing.T, db *gorm.DB, bookID uint, barcode string, status models.CopyStatus) models.BookCopy {
	t.Helper()

	copy := models.BookCopy{
		BookID:    bookID,
		Barcode:   barcode,
		Status:    status,
		Condition: models.CopyConditionGood,
		AddedAt:   models.Today(time.Now()),
	}
	require.NoError(t, db.Create(&copy).Error)
	return copy
}
