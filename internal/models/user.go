package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

/** --------------------ENTITIES-------------------- */
// User is the account as seen by the realtime layer. Credentials and profile
// editing live in the account service.
type User struct {
	gorm.Model
	Email     string `gorm:"uniqueIndex;not null" json:"email"`
	Nickname  string `json:"nickname,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`

	IsOnline bool       `gorm:"not null;default:false" json:"is_online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`

	// Notification preferences
	NotifyPush     bool `gorm:"not null;default:true" json:"notify_push"`
	NotifyMessages bool `gorm:"not null;default:true" json:"notify_messages"`
	NotifyGroups   bool `gorm:"not null;default:true" json:"notify_groups"`
	// Friends see online/offline transitions only when set
	ShowOnline bool `gorm:"not null;default:true" json:"show_online"`
}

// DisplayName is the nickname, else the full name, else the local part of the email.
func (u *User) DisplayName() string {
	if n := strings.TrimSpace(u.Nickname); n != "" {
		return n
	}
	if n := strings.TrimSpace(u.FirstName + " " + u.LastName); n != "" {
		return n
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// NotificationPreferences is the subset of User consulted before a notification
// is persisted or pushed.
type NotificationPreferences struct {
	Push     bool `json:"push"`
	Messages bool `json:"messages"`
	Groups   bool `json:"groups"`
}

func (u *User) Preferences() NotificationPreferences {
	return NotificationPreferences{
		Push:     u.NotifyPush,
		Messages: u.NotifyMessages,
		Groups:   u.NotifyGroups,
	}
}
