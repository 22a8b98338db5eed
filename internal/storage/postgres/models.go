package postgres

import "time"

// User is the canonical local identity record. ID is immutable once
// assigned; ExternalID, once set, never changes.
type User struct {
	ID          int64
	ExternalID  *string
	Username    string
	Email       *string
	IsSuperuser bool
	CreatedAt   time.Time
}

type CreateUserParams struct {
	ExternalID  *string
	Username    string
	Email       *string
	IsSuperuser bool
}

// UpdateUserParams carries a partial profile update. Nil fields are left
// untouched (set-if-provided, not set-to-null-if-absent).
type UpdateUserParams struct {
	ID       int64
	Username *string
	Email    *string
}

// AudioFile is an uploaded audio record owned by exactly one user.
// Records are created on upload and never mutated.
type AudioFile struct {
	ID         int64
	UserID     int64
	FileName   string
	FilePath   string
	UploadedAt time.Time
}

type CreateAudioFileParams struct {
	UserID   int64
	FileName string
	FilePath string
}
