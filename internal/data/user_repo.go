package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/target/jobmatch/internal/core"
	"github.com/target/jobmatch/internal/domain/model"
	apperrors "github.com/target/jobmatch/internal/errors"
)

// UserRepo stores registered accounts and guest identities in the users table.
type UserRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewUserRepo creates a UserRepo.
func NewUserRepo(db *sql.DB, cfg RepoConfig) *UserRepo {
	return &UserRepo{DB: db, timeProvider: cfg.timeProvider()}
}

const userColumns = `
  id,
  email,
  subject,
  display_name,
  role,
  is_guest,
  guest_session,
  encrypted_scoring_key,
  years_of_experience,
  preferred_skills,
  created_at
`

func scanUser(scanner rowScanner) (*model.User, error) {
	var (
		u                          model.User
		email, subject, guest, key sql.NullString
		skills                     sql.NullString
		years                      sql.NullInt64
	)
	if err := scanner.Scan(
		&u.ID,
		&email,
		&subject,
		&u.DisplayName,
		&u.Role,
		&u.IsGuest,
		&guest,
		&key,
		&years,
		&skills,
		&u.CreatedAt,
	); err != nil {
		return nil, err
	}
	u.Email = nullableString(email)
	u.Subject = nullableString(subject)
	u.GuestSession = nullableString(guest)
	u.EncryptedScoringKey = nullableString(key)
	if years.Valid {
		y := int(years.Int64)
		u.YearsOfExperience = &y
	}
	u.PreferredSkills = model.ParseSkills(skills.String)
	return &u, nil
}

func userNotFound() error {
	return apperrors.Wrap(ErrUserNotFound, apperrors.ErrCodeNotFound, "user not found")
}

// GetByID retrieves a user.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, userNotFound()
	}
	u, err := scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, userNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetOrCreateGuest returns the guest bound to sessionMarker, creating it on first use.
// Concurrent first requests for the same marker converge on one row.
func (r *UserRepo) GetOrCreateGuest(ctx context.Context, sessionMarker string) (*model.User, error) {
	marker := strings.TrimSpace(sessionMarker)
	if marker == "" {
		return nil, apperrors.ValidationField("session", "guest session marker is required")
	}
	now := r.timeProvider.Now().UTC()
	u, err := scanUser(r.DB.QueryRowContext(ctx, `
		INSERT INTO users (display_name, role, is_guest, guest_session, created_at, updated_at)
		VALUES ('guest', 'free', TRUE, $1, $2, $2)
		ON CONFLICT (guest_session) DO UPDATE SET updated_at = EXCLUDED.updated_at
		RETURNING `+userColumns,
		marker, now,
	))
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("upsert guest: %w", err))
	}
	return u, nil
}

// UpsertRegistered records a login. Email and display name follow the identity provider;
// an existing admin keeps the role even if the provider claims less.
func (r *UserRepo) UpsertRegistered(ctx context.Context, req model.UpsertUserRequest) (*model.User, error) {
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, apperrors.ValidationField("subject", "subject is required")
	}
	role := req.Role
	if role == "" {
		role = model.UserRoleFree
	}
	var email sql.NullString
	if e := strings.TrimSpace(req.Email); e != "" {
		email = sql.NullString{String: strings.ToLower(e), Valid: true}
	}
	now := r.timeProvider.Now().UTC()

	u, err := scanUser(r.DB.QueryRowContext(ctx, `
		INSERT INTO users (subject, email, display_name, role, is_guest, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $5)
		ON CONFLICT (subject) DO UPDATE SET
		  email = EXCLUDED.email,
		  display_name = EXCLUDED.display_name,
		  role = CASE WHEN users.role = 'admin' OR EXCLUDED.role = 'admin' THEN 'admin' ELSE EXCLUDED.role END,
		  updated_at = EXCLUDED.updated_at
		RETURNING `+userColumns,
		subject, email, req.DisplayName, role, now,
	))
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("upsert user: %w", err))
	}
	return u, nil
}

// SetScoringKey stores an encrypted scoring credential on a registered account.
func (r *UserRepo) SetScoringKey(ctx context.Context, userID, ciphertext string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return userNotFound()
	}
	if strings.TrimSpace(ciphertext) == "" {
		return apperrors.ValidationField("api_key", "scoring key is required")
	}
	var isGuest bool
	err := r.DB.QueryRowContext(ctx, `
		UPDATE users
		SET encrypted_scoring_key = CASE WHEN is_guest THEN encrypted_scoring_key ELSE $2 END,
		    updated_at = $3
		WHERE id = $1
		RETURNING is_guest
	`, userID, ciphertext, r.timeProvider.Now().UTC()).Scan(&isGuest)
	if errors.Is(err, sql.ErrNoRows) {
		return userNotFound()
	}
	if err != nil {
		return fmt.Errorf("set scoring key: %w", err)
	}
	if isGuest {
		return apperrors.Wrap(ErrGuestKey, apperrors.ErrCodeValidation, "sign in to save a scoring key")
	}
	return nil
}

var _ core.UserRepository = (*UserRepo)(nil)
