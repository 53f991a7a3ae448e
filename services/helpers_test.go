package services

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"klik-api/database"
	"klik-api/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Initialize("sqlite", "file:"+name+"?mode=memory&cache=shared", "silent")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createProfile(t *testing.T, db *gorm.DB, id, username string) *models.Profile {
	t.Helper()
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	profile := &models.Profile{
		ID:            id,
		Username:      username,
		DisplayName:   strings.ToUpper(username[:1]) + username[1:],
		Email:         username + "@example.com",
		Password:      string(hash),
		EmailVerified: true,
		Role:          models.RoleUser,
	}
	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("failed to create profile %s: %v", username, err)
	}
	settings := models.DefaultUserSettings(id)
	if err := db.Create(&settings).Error; err != nil {
		t.Fatalf("failed to create settings for %s: %v", username, err)
	}
	return profile
}
