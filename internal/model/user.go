package model

import "time"

// Role is a coarse user role from the user directory
type Role string

const (
	RoleCreator Role = "CREATOR"
	RoleViewer  Role = "VIEWER"
	RoleAdmin   Role = "ADMIN"
)

type User struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	TelegramChatID *int64    `json:"telegram_chat_id"` // nil = no notifications
	CreatedAt      time.Time `json:"created_at"`
}

// CanPublish checks if the user may own videos
func (u *User) CanPublish() bool {
	return u.Role == RoleCreator || u.Role == RoleAdmin
}
