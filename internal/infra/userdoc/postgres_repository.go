package userdoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medimind/medimind-api/internal/domain/analysis"
	"github.com/medimind/medimind-api/internal/domain/auth"
	"github.com/medimind/medimind-api/internal/domain/profile"
	"github.com/medimind/medimind-api/internal/domain/records"
)

const pgUniqueViolation = "23505"

// PostgresRepository persists user documents in Postgres. The analysis
// history lives as a JSONB array on the user row, mirroring the
// one-document-per-user layout the API exposes.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const userColumns = `id, email, full_name, user_type, COALESCE(photo_url, ''), password_hash, created_at`

// Create inserts a new user row.
func (r *PostgresRepository) Create(ctx context.Context, user auth.User) (auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, full_name, user_type, photo_url, password_hash)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING `+userColumns+`
	`, user.Email, user.FullName, user.UserType, user.PhotoURL, user.PasswordHash)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return auth.User{}, auth.ErrEmailExists
		}
		return auth.User{}, err
	}
	return created, nil
}

// GetByEmail fetches a user by email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (auth.User, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
		LIMIT 1
	`, email)
	return scanUserMaybe(row)
}

// GetByID fetches by primary key.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (auth.User, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
		LIMIT 1
	`, id)
	return scanUserMaybe(row)
}

// UpdatePassword replaces the stored password hash.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2 WHERE id = $1
	`, userID, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d not found", userID)
	}
	return nil
}

// GetIdentity fetches an external identity by provider subject.
func (r *PostgresRepository) GetIdentity(ctx context.Context, provider, providerSubject string) (auth.Identity, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, provider, provider_subject, provider_email, COALESCE(refresh_token, ''), created_at, updated_at
		FROM identities
		WHERE provider = $1 AND provider_subject = $2
		LIMIT 1
	`, provider, providerSubject)
	return scanIdentityMaybe(row)
}

// GetIdentityByUser fetches a user's identity for one provider.
func (r *PostgresRepository) GetIdentityByUser(ctx context.Context, userID int64, provider string) (auth.Identity, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, provider, provider_subject, provider_email, COALESCE(refresh_token, ''), created_at, updated_at
		FROM identities
		WHERE user_id = $1 AND provider = $2
		LIMIT 1
	`, userID, provider)
	return scanIdentityMaybe(row)
}

// UpsertIdentity inserts or refreshes an external identity.
func (r *PostgresRepository) UpsertIdentity(ctx context.Context, identity auth.Identity) (auth.Identity, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO identities (user_id, provider, provider_subject, provider_email, refresh_token)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		ON CONFLICT (provider, provider_subject) DO UPDATE SET
			provider_email = EXCLUDED.provider_email,
			refresh_token = COALESCE(EXCLUDED.refresh_token, identities.refresh_token),
			updated_at = now()
		RETURNING id, user_id, provider, provider_subject, provider_email, COALESCE(refresh_token, ''), created_at, updated_at
	`, identity.UserID, identity.Provider, identity.ProviderSubject, identity.ProviderEmail, identity.RefreshToken)
	return scanIdentity(row)
}

// AppendAnalysis appends one record to the user's JSONB history array.
func (r *PostgresRepository) AppendAnalysis(ctx context.Context, userID int64, record analysis.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET previous_analyses = COALESCE(previous_analyses, '[]'::jsonb) || jsonb_build_array($2::jsonb)
		WHERE id = $1
	`, userID, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d not found", userID)
	}
	return nil
}

// History returns the user's stored analyses, oldest first.
func (r *PostgresRepository) History(ctx context.Context, userID int64) ([]analysis.Record, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(previous_analyses, '[]'::jsonb)
		FROM users
		WHERE id = $1
	`, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return []analysis.Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeHistory(raw)
}

// GetProfile loads the editable profile fields.
func (r *PostgresRepository) GetProfile(ctx context.Context, userID int64) (profile.Profile, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, full_name, user_type, COALESCE(date_of_birth, ''), COALESCE(gender, ''), COALESCE(photo_url, ''), created_at, COALESCE(updated_at, created_at)
		FROM users
		WHERE id = $1
	`, userID)
	var p profile.Profile
	var created, updated time.Time
	err := row.Scan(&p.UserID, &p.Email, &p.FullName, &p.UserType, &p.DateOfBirth, &p.Gender, &p.PhotoURL, &created, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return profile.Profile{}, false, nil
	}
	if err != nil {
		return profile.Profile{}, false, err
	}
	p.CreatedAt = created.UTC()
	p.UpdatedAt = updated.UTC()
	return p, true, nil
}

// MergeProfile updates only the fields present in the update.
func (r *PostgresRepository) MergeProfile(ctx context.Context, userID int64, update profile.Update) (profile.Profile, error) {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET
			full_name = COALESCE($2, full_name),
			date_of_birth = COALESCE($3, date_of_birth),
			gender = COALESCE($4, gender),
			updated_at = now()
		WHERE id = $1
	`, userID, update.FullName, update.DateOfBirth, update.Gender)
	if err != nil {
		return profile.Profile{}, err
	}
	p, found, err := r.GetProfile(ctx, userID)
	if err != nil {
		return profile.Profile{}, err
	}
	if !found {
		return profile.Profile{}, fmt.Errorf("user %d not found", userID)
	}
	return p, nil
}

// SetPhotoURL records the avatar location.
func (r *PostgresRepository) SetPhotoURL(ctx context.Context, userID int64, url string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET photo_url = NULLIF($2, ''), updated_at = now() WHERE id = $1
	`, userID, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d not found", userID)
	}
	return nil
}

// ListPatientDocuments returns every patient with their history.
func (r *PostgresRepository) ListPatientDocuments(ctx context.Context) ([]records.PatientDocument, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, full_name, email, COALESCE(photo_url, ''), created_at, COALESCE(previous_analyses, '[]'::jsonb)
		FROM users
		WHERE user_type = $1
		ORDER BY id
	`, auth.UserTypePatient)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var documents []records.PatientDocument
	for rows.Next() {
		doc, err := scanPatientDocument(rows)
		if err != nil {
			return nil, err
		}
		documents = append(documents, doc)
	}
	return documents, rows.Err()
}

// GetPatientDocument returns one patient with their history.
func (r *PostgresRepository) GetPatientDocument(ctx context.Context, patientID int64) (records.PatientDocument, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, full_name, email, COALESCE(photo_url, ''), created_at, COALESCE(previous_analyses, '[]'::jsonb)
		FROM users
		WHERE id = $1 AND user_type = $2
	`, patientID, auth.UserTypePatient)
	doc, err := scanPatientDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return records.PatientDocument{}, false, nil
	}
	if err != nil {
		return records.PatientDocument{}, false, err
	}
	return doc, true, nil
}

// UpsertSevereCase merge-writes a materialized severe-case row.
func (r *PostgresRepository) UpsertSevereCase(ctx context.Context, severeCase records.SevereCase) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO severe_cases (record_id, patient_id, patient_name, disease, severity, symptoms, status, occurred_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (record_id) DO UPDATE SET
			patient_name = EXCLUDED.patient_name,
			disease = EXCLUDED.disease,
			severity = EXCLUDED.severity,
			symptoms = EXCLUDED.symptoms,
			status = EXCLUDED.status,
			occurred_at = EXCLUDED.occurred_at,
			updated_at = EXCLUDED.updated_at
	`, severeCase.RecordID, severeCase.PatientID, severeCase.PatientName, severeCase.Disease,
		severeCase.Severity, severeCase.Symptoms, severeCase.Status, severeCase.Timestamp, severeCase.UpdatedAt)
	return err
}

// SevereCases returns the materialized severe rows, newest first.
func (r *PostgresRepository) SevereCases(ctx context.Context) ([]records.SevereCase, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT record_id, patient_id, patient_name, disease, severity, symptoms, status, occurred_at, updated_at
		FROM severe_cases
		ORDER BY occurred_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []records.SevereCase
	for rows.Next() {
		var c records.SevereCase
		var updated time.Time
		if err := rows.Scan(&c.RecordID, &c.PatientID, &c.PatientName, &c.Disease, &c.Severity, &c.Symptoms, &c.Status, &c.Timestamp, &updated); err != nil {
			return nil, err
		}
		c.UpdatedAt = updated.UTC()
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (auth.User, error) {
	var user auth.User
	var created time.Time
	if err := row.Scan(&user.ID, &user.Email, &user.FullName, &user.UserType, &user.PhotoURL, &user.PasswordHash, &created); err != nil {
		return auth.User{}, err
	}
	user.CreatedAt = created.UTC()
	return user, nil
}

func scanUserMaybe(row rowScanner) (auth.User, bool, error) {
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.User{}, false, nil
	}
	if err != nil {
		return auth.User{}, false, err
	}
	return user, true, nil
}

func scanIdentity(row rowScanner) (auth.Identity, error) {
	var identity auth.Identity
	var created, updated time.Time
	if err := row.Scan(&identity.ID, &identity.UserID, &identity.Provider, &identity.ProviderSubject, &identity.ProviderEmail, &identity.RefreshToken, &created, &updated); err != nil {
		return auth.Identity{}, err
	}
	identity.CreatedAt = created.UTC()
	identity.UpdatedAt = updated.UTC()
	return identity, nil
}

func scanIdentityMaybe(row rowScanner) (auth.Identity, bool, error) {
	identity, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.Identity{}, false, nil
	}
	if err != nil {
		return auth.Identity{}, false, err
	}
	return identity, true, nil
}

func scanPatientDocument(row rowScanner) (records.PatientDocument, error) {
	var doc records.PatientDocument
	var raw []byte
	if err := row.Scan(&doc.UserID, &doc.FullName, &doc.Email, &doc.PhotoURL, &doc.CreatedAt, &raw); err != nil {
		return records.PatientDocument{}, err
	}
	analyses, err := decodeHistory(raw)
	if err != nil {
		return records.PatientDocument{}, err
	}
	doc.Analyses = analyses
	return doc, nil
}

func decodeHistory(raw []byte) ([]analysis.Record, error) {
	if len(raw) == 0 {
		return []analysis.Record{}, nil
	}
	var history []analysis.Record
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, err
	}
	if history == nil {
		history = []analysis.Record{}
	}
	return history, nil
}

var (
	_ auth.Repository     = (*PostgresRepository)(nil)
	_ analysis.Repository = (*PostgresRepository)(nil)
	_ profile.Repository  = (*PostgresRepository)(nil)
	_ records.Repository  = (*PostgresRepository)(nil)
)
