// File: /database/database.go
package database

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"klik-api/models"
)

// Initialize opens a gorm connection for the given driver (mysql, postgres or sqlite).
func Initialize(driver, databaseURL, logLevel string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(databaseURL)
	case "postgres":
		dialector = postgres.Open(databaseURL)
	case "sqlite":
		dialector = sqlite.Open(databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   logger.Default.LogMode(parseLogLevel(logLevel)),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		// Timestamps are stored in UTC so text comparisons on SQLite agree
		// with UTC cursors.
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite" {
		// SQLite allows a single writer; serialising connections avoids
		// "database is locked" errors and keeps in-memory databases shared.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Models lists every table owned by the service, in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.Profile{},
		&models.UserSettings{},
		&models.Follow{},
		&models.BlockedUser{},
		&models.ProfileView{},
		&models.PasswordReset{},
		&models.Post{},
		&models.Like{},
		&models.SavedPost{},
		&models.PostShare{},
		&models.Comment{},
		&models.CommentLike{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
		&models.Notification{},
		&models.UserList{},
		&models.UserListMember{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// SeedData can be used to populate the database with initial data for development/testing
func SeedData(db *gorm.DB) error {
	var userCount int64
	if err := db.Model(&models.Profile{}).Count(&userCount).Error; err != nil {
		return fmt.Errorf("failed to count profiles: %w", err)
	}

	if userCount > 0 {
		slog.Info("database already has data, skipping seed")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("klik1234"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash seed password: %w", err)
	}

	testUsers := []models.Profile{
		{
			ID:            "user-1",
			DisplayName:   "Ana Torres",
			Username:      "ana",
			Email:         "ana@example.com",
			Password:      string(hash),
			EmailVerified: true,
			Role:          models.RoleUser,
		},
		{
			ID:            "user-2",
			DisplayName:   "Bruno Diaz",
			Username:      "bruno",
			Email:         "bruno@example.com",
			Password:      string(hash),
			EmailVerified: true,
			Role:          models.RoleUser,
		},
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, user := range testUsers {
			if err := tx.Create(&user).Error; err != nil {
				return fmt.Errorf("could not create test user %s: %w", user.Username, err)
			}
			settings := models.DefaultUserSettings(user.ID)
			if err := tx.Create(&settings).Error; err != nil {
				return fmt.Errorf("could not create settings for %s: %w", user.Username, err)
			}
		}

		posts := []models.Post{
			{ID: "post-1", AuthorID: "user-1", Content: "Hola Klik! #firstpost", Hashtags: models.StringSlice{"firstpost"}},
			{ID: "post-2", AuthorID: "user-2", Content: "Coffee and a good book with @ana #sundayreads", Hashtags: models.StringSlice{"sundayreads"}},
		}
		for _, post := range posts {
			if err := tx.Create(&post).Error; err != nil {
				return fmt.Errorf("could not create test post %s: %w", post.ID, err)
			}
			if err := tx.Model(&models.Profile{}).Where("id = ?", post.AuthorID).
				UpdateColumn("posts_count", gorm.Expr("posts_count + ?", 1)).Error; err != nil {
				return err
			}
		}

		slog.Info("database seeded with test data", "users", len(testUsers), "posts", len(posts))
		return nil
	})
}
