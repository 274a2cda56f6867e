package models

import "strings"

// UserProfile is the slice of a profile the personalization core reads
type UserProfile struct {
	UserID        string          `dynamodbav:"userId" json:"userId"`                                     // ✅ Partition Key
	Username      string          `dynamodbav:"username" json:"username"`                                 // Unique handle
	DisplayName   string          `dynamodbav:"displayName,omitempty" json:"displayName,omitempty"`       // Shown in notification summaries
	Bio           string          `dynamodbav:"bio,omitempty" json:"bio,omitempty"`                       // Short biography
	Photo         string          `dynamodbav:"photo,omitempty" json:"photo,omitempty"`                   // Media key of the avatar
	FollowerCount int             `dynamodbav:"followerCount" json:"followerCount"`                       // Maintained by follow/unfollow
	Preferences   map[string]bool `dynamodbav:"notificationPrefs,omitempty" json:"preferences,omitempty"` // Notification type -> allowed
	SearchText    string          `dynamodbav:"searchText" json:"-"`                                      // Lowercased username, name and bio
}

// BuildSearchText refreshes the lowercased search projection
func (u *UserProfile) BuildSearchText() {
	u.SearchText = strings.ToLower(u.Username + " " + u.DisplayName + " " + u.Bio)
}

// Name returns the display name, falling back to the username
func (u *UserProfile) Name() string {
	if u == nil {
		return "Someone"
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Username != "" {
		return u.Username
	}
	return "Someone"
}

// Allows reports whether the user accepts notifications of the given type.
// Absent entries default to allowed.
func (u *UserProfile) Allows(notificationType string) bool {
	if u == nil || u.Preferences == nil {
		return true
	}
	allowed, ok := u.Preferences[notificationType]
	return !ok || allowed
}
