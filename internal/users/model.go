package users

import (
	"strings"
	"time"
)

// User captures the mapping between a canonical dailyframe user id and a
// provider-specific login, alongside the display attributes other views need.
type User struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null"`
	Provider    string    `gorm:"column:provider;size:32;not null;uniqueIndex:idx_users_provider_subject,priority:1"`
	Subject     string    `gorm:"column:subject;size:190;not null;uniqueIndex:idx_users_provider_subject,priority:2"`
	Username    string    `gorm:"column:username;size:320"`
	DisplayName string    `gorm:"column:display_name;size:320"`
	AvatarURL   string    `gorm:"column:avatar_url;size:512"`
	Reputation  int64     `gorm:"column:reputation;not null;default:0"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user accounts.
func (User) TableName() string {
	return "users"
}

// Profile is the view of a user attached to posts, comments, and feed entries.
type Profile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Reputation  int64  `json:"reputation"`
}

// Profile projects the public view of the user.
func (u User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Reputation:  u.Reputation,
	}
}

// Stats aggregates a user's activity counts for the profile surface.
type Stats struct {
	TotalPosts    int64 `json:"total_posts"`
	TotalComments int64 `json:"total_comments"`
	TotalVotes    int64 `json:"total_votes"`
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
