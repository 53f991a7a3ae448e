// File: /models/profile.go
package models

import (
	"strings"
	"time"
	"unicode"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	VisibilityPublic    = "public"
	VisibilityFollowers = "followers"
	VisibilityPrivate   = "private"
)

type Profile struct {
	ID               string    `json:"id" gorm:"primaryKey;size:191"`
	Username         string    `json:"username" gorm:"uniqueIndex;not null;size:50"`
	DisplayName      string    `json:"display_name" gorm:"not null;size:255"`
	Email            string    `json:"email,omitempty" gorm:"uniqueIndex;not null;size:255"`
	Password         string    `json:"-" gorm:"not null;size:255"`
	Bio              string    `json:"bio" gorm:"size:500"`
	Location         string    `json:"location,omitempty" gorm:"size:100"`
	Website          string    `json:"website" gorm:"size:255"`
	AvatarURL        *string   `json:"avatar_url" gorm:"size:500"`
	AvatarPath       string    `json:"-" gorm:"size:500"`
	BannerURL        *string   `json:"banner_url" gorm:"size:500"`
	BannerPath       string    `json:"-" gorm:"size:500"`
	EmailVerified    bool      `json:"email_verified"`
	OfficialVerified bool      `json:"official_verified"`
	Role             string    `json:"role" gorm:"default:'user';size:20"`
	FollowersCount   int       `json:"followers_count" gorm:"default:0"`
	FollowingCount   int       `json:"following_count" gorm:"default:0"`
	PostsCount       int       `json:"posts_count" gorm:"default:0"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ProfileSummary is the author/actor block embedded in posts, comments,
// messages and notifications.
type ProfileSummary struct {
	ID               string  `json:"id"`
	Username         string  `json:"username"`
	DisplayName      string  `json:"display_name"`
	AvatarURL        *string `json:"avatar_url"`
	EmailVerified    bool    `json:"email_verified"`
	OfficialVerified bool    `json:"official_verified"`
	Role             string  `json:"role"`
}

func (p *Profile) Summary() ProfileSummary {
	return ProfileSummary{
		ID:               p.ID,
		Username:         p.Username,
		DisplayName:      p.DisplayName,
		AvatarURL:        p.AvatarURL,
		EmailVerified:    p.EmailVerified,
		OfficialVerified: p.OfficialVerified,
		Role:             p.Role,
	}
}

type Follow struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	FollowerID  string    `json:"follower_id" gorm:"not null;size:191;uniqueIndex:uk_follows_pair;check:ck_follows_no_self,follower_id <> following_id"`
	FollowingID string    `json:"following_id" gorm:"not null;size:191;uniqueIndex:uk_follows_pair;index"`
	CreatedAt   time.Time `json:"created_at"`

	Follower  Profile `json:"follower" gorm:"foreignKey:FollowerID"`
	Following Profile `json:"following" gorm:"foreignKey:FollowingID"`
}

type BlockedUser struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	BlockerID string    `json:"blocker_id" gorm:"not null;size:191;uniqueIndex:uk_blocked_users_pair;check:ck_blocked_users_no_self,blocker_id <> blocked_id"`
	BlockedID string    `json:"blocked_id" gorm:"not null;size:191;uniqueIndex:uk_blocked_users_pair;index"`
	CreatedAt time.Time `json:"created_at"`

	Blocked Profile `json:"blocked" gorm:"foreignKey:BlockedID"`
}

type UserSettings struct {
	ID                  uint      `json:"-" gorm:"primaryKey"`
	UserID              string    `json:"user_id" gorm:"uniqueIndex;not null;size:191"`
	ProfileVisibility   string    `json:"profile_visibility" gorm:"not null;size:20"`
	ShowEmail           bool      `json:"show_email"`
	ShowLocation        bool      `json:"show_location"`
	AllowDirectMessages bool      `json:"allow_direct_messages"`
	ShowOnlineStatus    bool      `json:"show_online_status"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// DefaultUserSettings mirrors the values a new account starts with. Bool
// columns carry no gorm defaults so that explicit false values survive Create.
func DefaultUserSettings(userID string) UserSettings {
	return UserSettings{
		UserID:              userID,
		ProfileVisibility:   VisibilityPublic,
		ShowEmail:           false,
		ShowLocation:        true,
		AllowDirectMessages: true,
		ShowOnlineStatus:    true,
	}
}

func IsValidVisibility(v string) bool {
	switch v {
	case VisibilityPublic, VisibilityFollowers, VisibilityPrivate:
		return true
	}
	return false
}

type ProfileView struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	ProfileID  string    `json:"profile_id" gorm:"not null;size:191;uniqueIndex:uk_profile_views_daily"`
	ViewerID   *string   `json:"viewer_id" gorm:"size:191;uniqueIndex:uk_profile_views_daily"`
	ViewedDate string    `json:"viewed_date" gorm:"not null;size:10;uniqueIndex:uk_profile_views_daily"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProfileAnalytics summarises profile views for the owner.
type ProfileAnalytics struct {
	TotalViews     int64 `json:"total_views"`
	TodayViews     int64 `json:"today_views"`
	UniqueViewers  int64 `json:"unique_viewers"`
	FollowersCount int   `json:"followers_count"`
	PostsCount     int   `json:"posts_count"`
}

type PasswordReset struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;size:191;index"`
	TokenHash string    `gorm:"uniqueIndex;not null;size:64"`
	ExpiresAt time.Time `gorm:"not null"`
	Used      bool
	CreatedAt time.Time
}

// GenerateUsernameFromName creates a username candidate from a display name
func GenerateUsernameFromName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('_')
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		}
	}

	username := strings.Trim(b.String(), "_")
	if len(username) > 24 {
		username = username[:24]
	}
	if len(username) < 3 {
		username = "user" + username
	}
	return username
}
