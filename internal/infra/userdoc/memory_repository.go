package userdoc

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/medimind/medimind-api/internal/domain/analysis"
	"github.com/medimind/medimind-api/internal/domain/auth"
	"github.com/medimind/medimind-api/internal/domain/profile"
	"github.com/medimind/medimind-api/internal/domain/records"
)

// MemoryRepository keeps user documents in process memory for tests/dev.
type MemoryRepository struct {
	mu          sync.RWMutex
	users       map[int64]auth.User
	emailIndex  map[string]int64
	extra       map[int64]profileExtra
	analyses    map[int64][]analysis.Record
	identities  map[string]auth.Identity
	severeCases map[string]records.SevereCase
	seq         int64
	identitySeq int64
}

type profileExtra struct {
	dateOfBirth string
	gender      string
	updatedAt   time.Time
}

// NewMemoryRepository constructs a new in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:       make(map[int64]auth.User),
		emailIndex:  make(map[string]int64),
		extra:       make(map[int64]profileExtra),
		analyses:    make(map[int64][]analysis.Record),
		identities:  make(map[string]auth.Identity),
		severeCases: make(map[string]records.SevereCase),
	}
}

// Create stores the user record.
func (r *MemoryRepository) Create(_ context.Context, user auth.User) (auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.emailIndex[user.Email]; exists {
		return auth.User{}, auth.ErrEmailExists
	}
	r.seq++
	user.ID = r.seq
	user.CreatedAt = time.Now().UTC()
	r.users[user.ID] = user
	r.emailIndex[user.Email] = user.ID
	return user, nil
}

// GetByEmail returns a user by email.
func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (auth.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.emailIndex[email]; ok {
		return r.users[id], true, nil
	}
	return auth.User{}, false, nil
}

// GetByID returns a user by primary key.
func (r *MemoryRepository) GetByID(_ context.Context, id int64) (auth.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	return user, ok, nil
}

// UpdatePassword replaces the stored password hash.
func (r *MemoryRepository) UpdatePassword(_ context.Context, userID int64, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user %d not found", userID)
	}
	user.PasswordHash = passwordHash
	r.users[userID] = user
	return nil
}

// GetIdentity returns an identity by provider subject.
func (r *MemoryRepository) GetIdentity(_ context.Context, provider, providerSubject string) (auth.Identity, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.identities[provider+"/"+providerSubject]
	return identity, ok, nil
}

// GetIdentityByUser returns the user's identity for one provider.
func (r *MemoryRepository) GetIdentityByUser(_ context.Context, userID int64, provider string) (auth.Identity, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, identity := range r.identities {
		if identity.UserID == userID && identity.Provider == provider {
			return identity, true, nil
		}
	}
	return auth.Identity{}, false, nil
}

// UpsertIdentity inserts or refreshes an identity.
func (r *MemoryRepository) UpsertIdentity(_ context.Context, identity auth.Identity) (auth.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := identity.Provider + "/" + identity.ProviderSubject
	now := time.Now().UTC()
	if existing, ok := r.identities[key]; ok {
		existing.ProviderEmail = identity.ProviderEmail
		if identity.RefreshToken != "" {
			existing.RefreshToken = identity.RefreshToken
		}
		existing.UpdatedAt = now
		r.identities[key] = existing
		return existing, nil
	}
	r.identitySeq++
	identity.ID = r.identitySeq
	identity.CreatedAt = now
	identity.UpdatedAt = now
	r.identities[key] = identity
	return identity, nil
}

// AppendAnalysis appends one record to the user's history.
func (r *MemoryRepository) AppendAnalysis(_ context.Context, userID int64, record analysis.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return fmt.Errorf("user %d not found", userID)
	}
	r.analyses[userID] = append(r.analyses[userID], record)
	return nil
}

// History returns the user's stored analyses, oldest first.
func (r *MemoryRepository) History(_ context.Context, userID int64) ([]analysis.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]analysis.Record{}, r.analyses[userID]...), nil
}

// GetProfile loads the editable profile fields.
func (r *MemoryRepository) GetProfile(_ context.Context, userID int64) (profile.Profile, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return profile.Profile{}, false, nil
	}
	extra := r.extra[userID]
	updated := extra.updatedAt
	if updated.IsZero() {
		updated = user.CreatedAt
	}
	return profile.Profile{
		UserID:      user.ID,
		Email:       user.Email,
		FullName:    user.FullName,
		UserType:    user.UserType,
		DateOfBirth: extra.dateOfBirth,
		Gender:      extra.gender,
		PhotoURL:    user.PhotoURL,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   updated,
	}, true, nil
}

// MergeProfile updates only the fields present in the update.
func (r *MemoryRepository) MergeProfile(ctx context.Context, userID int64, update profile.Update) (profile.Profile, error) {
	r.mu.Lock()
	user, ok := r.users[userID]
	if !ok {
		r.mu.Unlock()
		return profile.Profile{}, fmt.Errorf("user %d not found", userID)
	}
	extra := r.extra[userID]
	if update.FullName != nil {
		user.FullName = *update.FullName
	}
	if update.DateOfBirth != nil {
		extra.dateOfBirth = *update.DateOfBirth
	}
	if update.Gender != nil {
		extra.gender = *update.Gender
	}
	extra.updatedAt = time.Now().UTC()
	r.users[userID] = user
	r.extra[userID] = extra
	r.mu.Unlock()

	p, _, err := r.GetProfile(ctx, userID)
	return p, err
}

// SetPhotoURL records the avatar location.
func (r *MemoryRepository) SetPhotoURL(_ context.Context, userID int64, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user %d not found", userID)
	}
	user.PhotoURL = url
	r.users[userID] = user
	extra := r.extra[userID]
	extra.updatedAt = time.Now().UTC()
	r.extra[userID] = extra
	return nil
}

// ListPatientDocuments returns all patients with their history.
func (r *MemoryRepository) ListPatientDocuments(_ context.Context) ([]records.PatientDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var documents []records.PatientDocument
	for _, user := range r.users {
		if user.UserType != auth.UserTypePatient {
			continue
		}
		documents = append(documents, records.PatientDocument{
			UserID:    user.ID,
			FullName:  user.FullName,
			Email:     user.Email,
			PhotoURL:  user.PhotoURL,
			CreatedAt: user.CreatedAt,
			Analyses:  append([]analysis.Record{}, r.analyses[user.ID]...),
		})
	}
	sort.Slice(documents, func(i, j int) bool { return documents[i].UserID < documents[j].UserID })
	return documents, nil
}

// GetPatientDocument returns one patient with their history.
func (r *MemoryRepository) GetPatientDocument(_ context.Context, patientID int64) (records.PatientDocument, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[patientID]
	if !ok || user.UserType != auth.UserTypePatient {
		return records.PatientDocument{}, false, nil
	}
	return records.PatientDocument{
		UserID:    user.ID,
		FullName:  user.FullName,
		Email:     user.Email,
		PhotoURL:  user.PhotoURL,
		CreatedAt: user.CreatedAt,
		Analyses:  append([]analysis.Record{}, r.analyses[user.ID]...),
	}, true, nil
}

// UpsertSevereCase merge-writes a severe-case row.
func (r *MemoryRepository) UpsertSevereCase(_ context.Context, severeCase records.SevereCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.severeCases[severeCase.RecordID] = severeCase
	return nil
}

// SevereCases returns the materialized severe rows.
func (r *MemoryRepository) SevereCases(_ context.Context) ([]records.SevereCase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cases := make([]records.SevereCase, 0, len(r.severeCases))
	for _, c := range r.severeCases {
		cases = append(cases, c)
	}
	sort.Slice(cases, func(i, j int) bool { return cases[i].Timestamp > cases[j].Timestamp })
	return cases, nil
}

var (
	_ auth.Repository     = (*MemoryRepository)(nil)
	_ analysis.Repository = (*MemoryRepository)(nil)
	_ profile.Repository  = (*MemoryRepository)(nil)
	_ records.Repository  = (*MemoryRepository)(nil)
)
