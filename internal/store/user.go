package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/TaichKarna/levlelup/types"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const userColumns = `
	id, username, email, password_hash, provider, provider_id,
	profile_picture, is_verified, verification_token,
	reset_password_token, reset_password_expires, role, university_id,
	created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `SELECT` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `SELECT` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	const query = `SELECT` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

// GetByProviderIdentity looks up a user by the external account
// identifier assigned by an OAuth provider.
func (r *UserRepository) GetByProviderIdentity(ctx context.Context, provider, providerID string) (types.User, error) {
	const query = `SELECT` + userColumns + ` FROM users WHERE provider = $1 AND provider_id = $2`
	return scanUser(r.db.QueryRowContext(ctx, query, provider, providerID))
}

func (r *UserRepository) ListByUniversity(ctx context.Context, universityID int) ([]types.User, error) {
	const query = `SELECT` + userColumns + ` FROM users WHERE university_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, universityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []types.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Create inserts a new user. Uniqueness of username, email, and
// (provider, provider_id) is enforced by database indexes so two
// concurrent registrations cannot both succeed.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (
			username, email, password_hash, provider, provider_id,
			profile_picture, is_verified, verification_token, role,
			university_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.Email,
		nullString(user.PasswordHash),
		user.Provider,
		nullString(user.ProviderID),
		user.ProfilePicture,
		user.IsVerified,
		nullString(user.VerificationToken),
		user.Role,
		nullInt(user.UniversityID),
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		return types.User{}, mapUniqueViolation(err)
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now()

	const query = `
		UPDATE users
		SET username = $1,
			email = $2,
			password_hash = $3,
			provider = $4,
			provider_id = $5,
			profile_picture = $6,
			is_verified = $7,
			verification_token = $8,
			reset_password_token = $9,
			reset_password_expires = $10,
			role = $11,
			university_id = $12,
			updated_at = $13
		WHERE id = $14`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Username,
		user.Email,
		nullString(user.PasswordHash),
		user.Provider,
		nullString(user.ProviderID),
		user.ProfilePicture,
		user.IsVerified,
		nullString(user.VerificationToken),
		nullString(user.ResetPasswordToken),
		nullTime(user.ResetPasswordExpires),
		user.Role,
		nullInt(user.UniversityID),
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, mapUniqueViolation(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeVerificationToken marks the holder of token as verified and
// clears the token in a single statement, so the token is single use.
func (r *UserRepository) ConsumeVerificationToken(ctx context.Context, token string) (types.User, error) {
	const query = `
		UPDATE users
		SET is_verified = TRUE,
			verification_token = NULL,
			updated_at = $2
		WHERE verification_token = $1
		RETURNING` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, query, token, time.Now()))
}

// SetResetToken stores a password reset token and its expiry for the
// account with the given email.
func (r *UserRepository) SetResetToken(ctx context.Context, email, token string, expires time.Time) error {
	const query = `
		UPDATE users
		SET reset_password_token = $2,
			reset_password_expires = $3,
			updated_at = $4
		WHERE email = $1`
	result, err := r.db.ExecContext(ctx, query, email, token, expires, time.Now())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeResetToken replaces the password hash and clears both reset
// fields in a single statement keyed by the token and its expiry
// window. An expired or already-used token matches no row.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (types.User, error) {
	const query = `
		UPDATE users
		SET password_hash = $2,
			reset_password_token = NULL,
			reset_password_expires = NULL,
			updated_at = $3
		WHERE reset_password_token = $1
		  AND reset_password_expires > $3
		RETURNING` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, query, token, passwordHash, now))
}

func scanUser(row interface{ Scan(dest ...any) error }) (types.User, error) {
	var (
		user         types.User
		passwordHash sql.NullString
		providerID   sql.NullString
		verifyToken  sql.NullString
		resetToken   sql.NullString
		resetExpires sql.NullTime
		universityID sql.NullInt64
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&passwordHash,
		&user.Provider,
		&providerID,
		&user.ProfilePicture,
		&user.IsVerified,
		&verifyToken,
		&resetToken,
		&resetExpires,
		&user.Role,
		&universityID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	user.PasswordHash = passwordHash.String
	user.ProviderID = providerID.String
	user.VerificationToken = verifyToken.String
	user.ResetPasswordToken = resetToken.String
	user.ResetPasswordExpires = resetExpires.Time
	user.UniversityID = int(universityID.Int64)
	return user, nil
}

func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullInt(i int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(i), Valid: i != 0}
}
