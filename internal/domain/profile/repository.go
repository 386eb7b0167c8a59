package profile

import "context"

// Repository abstracts profile persistence.
type Repository interface {
	GetProfile(ctx context.Context, userID int64) (Profile, bool, error)
	MergeProfile(ctx context.Context, userID int64, update Update) (Profile, error)
	SetPhotoURL(ctx context.Context, userID int64, url string) error
}

// ObjectStorage abstracts avatar blob storage (S3/R2/local).
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) (StoredObject, error)
	Delete(ctx context.Context, key string) error
}
