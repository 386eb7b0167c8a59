package profile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/medimind/medimind-api/pkg/errors"
)

type memoryProfileRepo struct {
	profiles map[int64]Profile
}

func newMemoryProfileRepo(seed ...Profile) *memoryProfileRepo {
	repo := &memoryProfileRepo{profiles: make(map[int64]Profile)}
	for _, p := range seed {
		repo.profiles[p.UserID] = p
	}
	return repo
}

func (m *memoryProfileRepo) GetProfile(_ context.Context, userID int64) (Profile, bool, error) {
	p, ok := m.profiles[userID]
	return p, ok, nil
}

func (m *memoryProfileRepo) MergeProfile(_ context.Context, userID int64, update Update) (Profile, error) {
	p := m.profiles[userID]
	if update.FullName != nil {
		p.FullName = *update.FullName
	}
	if update.DateOfBirth != nil {
		p.DateOfBirth = *update.DateOfBirth
	}
	if update.Gender != nil {
		p.Gender = *update.Gender
	}
	m.profiles[userID] = p
	return p, nil
}

func (m *memoryProfileRepo) SetPhotoURL(_ context.Context, userID int64, url string) error {
	p := m.profiles[userID]
	p.PhotoURL = url
	m.profiles[userID] = p
	return nil
}

type memoryStorage struct {
	blobs   map[string][]byte
	putErr  error
	deleted []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{blobs: make(map[string][]byte)}
}

func (m *memoryStorage) Put(_ context.Context, key string, data []byte, mimeType string) (StoredObject, error) {
	if m.putErr != nil {
		return StoredObject{}, m.putErr
	}
	m.blobs[key] = data
	return StoredObject{Key: key, Size: int64(len(data)), MimeType: mimeType}, nil
}

func (m *memoryStorage) Delete(_ context.Context, key string) error {
	delete(m.blobs, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedProfile() Profile {
	return Profile{UserID: 1, Email: "pat@example.com", FullName: "Pat Doe", UserType: "patient"}
}

func TestUpdateMergesOnlyProvidedFields(t *testing.T) {
	repo := newMemoryProfileRepo(seedProfile())
	svc := NewService(Config{}, repo, newMemoryStorage(), testLogger())

	dob := "1990-04-12"
	updated, err := svc.Update(context.Background(), 1, UpdateRequest{DateOfBirth: &dob})
	require.NoError(t, err)
	require.Equal(t, "1990-04-12", updated.DateOfBirth)
	require.Equal(t, "Pat Doe", updated.FullName, "untouched field is preserved")

	gender := "female"
	updated, err = svc.Update(context.Background(), 1, UpdateRequest{Gender: &gender})
	require.NoError(t, err)
	require.Equal(t, "female", updated.Gender)
	require.Equal(t, "1990-04-12", updated.DateOfBirth)
}

func TestUpdateValidation(t *testing.T) {
	repo := newMemoryProfileRepo(seedProfile())
	svc := NewService(Config{}, repo, newMemoryStorage(), testLogger())

	empty := "   "
	_, err := svc.Update(context.Background(), 1, UpdateRequest{FullName: &empty})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "invalid_input"))

	badDOB := "12/04/1990"
	_, err = svc.Update(context.Background(), 1, UpdateRequest{DateOfBirth: &badDOB})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "invalid_input"))
}

func TestUpdateUnknownUser(t *testing.T) {
	svc := NewService(Config{}, newMemoryProfileRepo(), newMemoryStorage(), testLogger())

	name := "Pat Doe"
	_, err := svc.Update(context.Background(), 99, UpdateRequest{FullName: &name})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "user_not_found"))
}

// pngHeader is enough for http.DetectContentType to classify the payload.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func TestUploadAvatarStoresAndRecordsURL(t *testing.T) {
	repo := newMemoryProfileRepo(seedProfile())
	storage := newMemoryStorage()
	svc := NewService(Config{MaxAvatarBytes: 1024, PublicURL: "https://cdn.example.com/"}, repo, storage, testLogger())

	resp, err := svc.UploadAvatar(context.Background(), 1, AvatarRequest{
		Filename: "me.png",
		MimeType: "image/png",
		Content:  pngHeader,
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(resp.PhotoURL, "https://cdn.example.com/avatars/1/"))
	require.True(t, strings.HasSuffix(resp.PhotoURL, ".png"))
	require.Len(t, storage.blobs, 1)

	profile, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, resp.PhotoURL, profile.PhotoURL)
}

func TestUploadAvatarRejectsOversizeAndWrongType(t *testing.T) {
	repo := newMemoryProfileRepo(seedProfile())
	svc := NewService(Config{MaxAvatarBytes: 4}, repo, newMemoryStorage(), testLogger())

	_, err := svc.UploadAvatar(context.Background(), 1, AvatarRequest{MimeType: "image/png", Content: pngHeader})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "invalid_input"))

	svc = NewService(Config{MaxAvatarBytes: 1024}, repo, newMemoryStorage(), testLogger())
	_, err = svc.UploadAvatar(context.Background(), 1, AvatarRequest{MimeType: "application/pdf", Content: []byte("%PDF-1.4")})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "invalid_input"))
}

func TestUploadAvatarRollsBackOnRecordFailure(t *testing.T) {
	repo := &failingPhotoRepo{memoryProfileRepo: newMemoryProfileRepo(seedProfile())}
	storage := newMemoryStorage()
	svc := NewService(Config{MaxAvatarBytes: 1024}, repo, storage, testLogger())

	_, err := svc.UploadAvatar(context.Background(), 1, AvatarRequest{MimeType: "image/png", Content: pngHeader})
	require.Error(t, err)
	require.Empty(t, storage.blobs, "orphaned blob is removed")
	require.Len(t, storage.deleted, 1)
}

type failingPhotoRepo struct {
	*memoryProfileRepo
}

func (f *failingPhotoRepo) SetPhotoURL(context.Context, int64, string) error {
	return errors.New("write failed")
}
