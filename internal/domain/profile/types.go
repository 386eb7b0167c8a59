package profile

import "time"

// Config drives avatar upload limits and URL construction.
type Config struct {
	MaxAvatarBytes int64
	PublicURL      string
}

// Profile is the account view a user edits on the settings page.
type Profile struct {
	UserID      int64     `json:"userId"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName"`
	UserType    string    `json:"userType"`
	DateOfBirth string    `json:"dateOfBirth,omitempty"`
	Gender      string    `json:"gender,omitempty"`
	PhotoURL    string    `json:"photoUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UpdateRequest carries a partial profile edit. Nil fields are untouched.
type UpdateRequest struct {
	FullName    *string `json:"fullName"`
	DateOfBirth *string `json:"dateOfBirth"`
	Gender      *string `json:"gender"`
}

// Update is the normalized form handed to the repository.
type Update struct {
	FullName    *string
	DateOfBirth *string
	Gender      *string
}

// AvatarRequest captures a multipart avatar submission.
type AvatarRequest struct {
	Filename string
	MimeType string
	Content  []byte
}

// AvatarResponse returns the stored avatar location.
type AvatarResponse struct {
	PhotoURL string `json:"photoUrl"`
}

// StoredObject captures persisted blob metadata.
type StoredObject struct {
	Key      string
	Size     int64
	MimeType string
	ETag     string
}
