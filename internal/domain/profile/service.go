package profile

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/medimind/medimind-api/pkg/errors"
)

// Service exposes profile reads, partial edits, and avatar uploads.
type Service interface {
	Get(ctx context.Context, userID int64) (Profile, error)
	Update(ctx context.Context, userID int64, req UpdateRequest) (Profile, error)
	UploadAvatar(ctx context.Context, userID int64, req AvatarRequest) (AvatarResponse, error)
}

type service struct {
	cfg     Config
	repo    Repository
	storage ObjectStorage
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(cfg Config, repo Repository, storage ObjectStorage, logger *slog.Logger) Service {
	return &service{
		cfg:     cfg,
		repo:    repo,
		storage: storage,
		logger:  logger.With("component", "profile.service"),
	}
}

func (s *service) Get(ctx context.Context, userID int64) (Profile, error) {
	profile, found, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, apperrors.Wrap("profile_error", "failed to load profile", err)
	}
	if !found {
		return Profile{}, apperrors.New("user_not_found", "user not found")
	}
	return profile, nil
}

// Update applies a merge edit: only the request's non-nil fields change,
// everything else on the row is preserved.
func (s *service) Update(ctx context.Context, userID int64, req UpdateRequest) (Profile, error) {
	update := Update{}
	if req.FullName != nil {
		fullName := strings.TrimSpace(*req.FullName)
		if fullName == "" {
			return Profile{}, apperrors.New("invalid_input", "full name cannot be empty")
		}
		if len([]rune(fullName)) > 100 {
			return Profile{}, apperrors.New("invalid_input", "full name cannot exceed 100 characters")
		}
		update.FullName = &fullName
	}
	if req.DateOfBirth != nil {
		dob := strings.TrimSpace(*req.DateOfBirth)
		if dob != "" {
			if _, err := time.Parse("2006-01-02", dob); err != nil {
				return Profile{}, apperrors.New("invalid_input", "date of birth must be YYYY-MM-DD")
			}
		}
		update.DateOfBirth = &dob
	}
	if req.Gender != nil {
		gender := strings.TrimSpace(*req.Gender)
		if len([]rune(gender)) > 30 {
			return Profile{}, apperrors.New("invalid_input", "gender cannot exceed 30 characters")
		}
		update.Gender = &gender
	}
	if update.FullName == nil && update.DateOfBirth == nil && update.Gender == nil {
		return s.Get(ctx, userID)
	}
	if _, found, err := s.repo.GetProfile(ctx, userID); err != nil {
		return Profile{}, apperrors.Wrap("profile_error", "failed to load profile", err)
	} else if !found {
		return Profile{}, apperrors.New("user_not_found", "user not found")
	}
	profile, err := s.repo.MergeProfile(ctx, userID, update)
	if err != nil {
		return Profile{}, apperrors.Wrap("profile_error", "failed to update profile", err)
	}
	return profile, nil
}

var avatarExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

func (s *service) UploadAvatar(ctx context.Context, userID int64, req AvatarRequest) (AvatarResponse, error) {
	if len(req.Content) == 0 {
		return AvatarResponse{}, apperrors.New("invalid_input", "avatar content cannot be empty")
	}
	if s.cfg.MaxAvatarBytes > 0 && int64(len(req.Content)) > s.cfg.MaxAvatarBytes {
		return AvatarResponse{}, apperrors.New("invalid_input", "avatar exceeds maximum allowed size")
	}
	mime := strings.TrimSpace(req.MimeType)
	if mime == "" {
		mime = http.DetectContentType(req.Content)
	}
	ext, ok := avatarExtensions[mime]
	if !ok {
		return AvatarResponse{}, apperrors.New("invalid_input", "avatar must be a jpeg, png, or webp image")
	}
	if _, found, err := s.repo.GetProfile(ctx, userID); err != nil {
		return AvatarResponse{}, apperrors.Wrap("profile_error", "failed to load profile", err)
	} else if !found {
		return AvatarResponse{}, apperrors.New("user_not_found", "user not found")
	}

	key := fmt.Sprintf("avatars/%d/%s%s", userID, uuid.NewString(), ext)
	obj, err := s.storage.Put(ctx, key, req.Content, mime)
	if err != nil {
		return AvatarResponse{}, apperrors.Wrap("storage_error", "failed to store avatar", err)
	}
	url := s.publicURL(obj.Key)
	if err := s.repo.SetPhotoURL(ctx, userID, url); err != nil {
		// Roll back the orphaned blob so repeated failures do not pile up.
		if delErr := s.storage.Delete(ctx, obj.Key); delErr != nil {
			s.logger.Warn("failed to delete orphaned avatar", "error", delErr, "key", obj.Key)
		}
		return AvatarResponse{}, apperrors.Wrap("profile_error", "failed to record avatar", err)
	}
	return AvatarResponse{PhotoURL: url}, nil
}

func (s *service) publicURL(key string) string {
	base := strings.TrimRight(strings.TrimSpace(s.cfg.PublicURL), "/")
	if base == "" {
		return "/" + key
	}
	return base + "/" + path.Clean(key)
}
