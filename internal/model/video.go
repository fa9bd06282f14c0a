package model

import "time"

// Video holds the facts about a video that access control reads
type Video struct {
	ID                 int64     `json:"id"`
	CreatorID          int64     `json:"creator_id"`
	Title              string    `json:"title"`
	IsPublished        bool      `json:"is_published"`
	AccessCode         *string   `json:"access_code"` // nil = never generated
	RequiresAccessCode bool      `json:"requires_access_code"`
	CreatedAt          time.Time `json:"created_at"`
}

// IsOwnedBy checks if the user created the video
func (v *Video) IsOwnedBy(userID int64) bool {
	return v.CreatorID == userID
}

// HasActiveCode checks if the video carries a code that can be redeemed
func (v *Video) HasActiveCode() bool {
	return v.RequiresAccessCode && v.AccessCode != nil && *v.AccessCode != ""
}
