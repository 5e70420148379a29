// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"fmt"
	"testing"

	"circles/internal/database"
	"circles/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewSQLiteDB returns a migrated, isolated in-memory database closed at the
// end of the test. A single connection keeps transactions serialized.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := database.OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CreateLocalUser inserts a password user with an empty profile.
func CreateLocalUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := models.NewUser(username, "First", "Last", models.LocalIdentity("hash-"+username))
	user.Profile = &models.Profile{}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

// CreateFederatedUser inserts an externally authenticated user.
func CreateFederatedUser(t testing.TB, db *gorm.DB, username, externalID string) *models.User {
	t.Helper()
	user := models.NewUser(username, "Fed", "User", models.FederatedIdentity(externalID))
	user.Profile = &models.Profile{}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create federated user %s: %v", username, err)
	}
	return user
}

// Follow inserts the edge follower -> followee.
func Follow(t testing.TB, db *gorm.DB, followerID, followeeID uint) {
	t.Helper()
	edge := models.Follow{FollowerID: followerID, FolloweeID: followeeID}
	if err := db.Omit("Follower", "Followee").Create(&edge).Error; err != nil {
		t.Fatalf("follow %d->%d: %v", followerID, followeeID, err)
	}
}

// CreatePost inserts a post by author with the given visibility.
func CreatePost(t testing.TB, db *gorm.DB, authorID uint, content string, visibility models.Visibility) *models.Post {
	t.Helper()
	post := &models.Post{AuthorID: authorID, Content: content, Visibility: visibility}
	if err := db.Omit("Author").Create(post).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}
	return post
}
