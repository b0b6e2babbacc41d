package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TaichKarna/levlelup/internal/oauth"
	"github.com/TaichKarna/levlelup/internal/store"
	"github.com/TaichKarna/levlelup/types"
	"golang.org/x/crypto/bcrypt"
)

const resetTokenTTL = time.Hour

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByProviderIdentity(ctx context.Context, provider, providerID string) (types.User, error)
	ListByUniversity(ctx context.Context, universityID int) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
	ConsumeVerificationToken(ctx context.Context, token string) (types.User, error)
	SetResetToken(ctx context.Context, email, token string, expires time.Time) error
	ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (types.User, error)
}

// UserService encapsulates account and credential use-cases.
type UserService struct {
	repo         UserRepository
	universities UniversityRepository
}

func NewUserService(repo UserRepository, universities UniversityRepository) *UserService {
	return &UserService{repo: repo, universities: universities}
}

// RegisterRequest carries a local registration with its university
// metadata.
type RegisterRequest struct {
	Username   string
	Email      string
	Password   string
	University UniversityDetails
}

// UniversityDetails is the institution metadata supplied at
// registration.
type UniversityDetails struct {
	Name                string
	InstitutionType     string
	Affiliation         string
	RegistrationNumber  string
	YearOfEstablishment int
	Website             string
	Logo                string
}

// Register creates a local account with a hashed password and a fresh
// verification token, creating the named university if it does not
// exist yet. The caller is responsible for delivering the token.
// Returns store.ErrDuplicate when the username or email is taken.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (types.User, types.University, error) {
	uni, err := s.ensureUniversity(ctx, req.University)
	if err != nil {
		return types.User{}, types.University{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, types.University{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:          req.Username,
		Email:             strings.ToLower(req.Email),
		PasswordHash:      string(hash),
		Provider:          types.ProviderLocal,
		VerificationToken: newSecureToken(),
		Role:              types.RoleUser,
		UniversityID:      uni.ID,
	})
	if err != nil {
		return types.User{}, types.University{}, err
	}
	return user, uni, nil
}

// Login validates credentials and the account's gates in order:
// credentials, then the university's admin verification, then the
// user's own email verification. The university check runs first to
// match the platform's onboarding flow: a user of a pending
// university is told to wait for approval, not to re-check email.
func (s *UserService) Login(ctx context.Context, email, password string) (types.User, types.University, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return types.User{}, types.University{}, err
	}

	var uni types.University
	if user.UniversityID != 0 {
		uni, err = s.universities.GetByID(ctx, user.UniversityID)
		if err != nil {
			return types.User{}, types.University{}, err
		}
		if !uni.IsVerified {
			return types.User{}, types.University{}, ErrUniversityPending
		}
	}

	if !user.IsVerified {
		return types.User{}, types.University{}, ErrNotVerified
	}
	return user, uni, nil
}

// Authenticate verifies an email/password pair. Accounts created
// through OAuth carry no hash and always fail here, even with an
// empty password.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if user.PasswordHash == "" {
		return types.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// CreateOrLinkOAuth resolves an OAuth profile to an account. A match
// on the provider identity or the email relinks the existing account
// to this provider and marks it verified; otherwise a verified,
// passwordless account is created under a generated username.
func (s *UserService) CreateOrLinkOAuth(ctx context.Context, provider string, profile oauth.Profile) (types.User, error) {
	user, err := s.repo.GetByProviderIdentity(ctx, provider, profile.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}
	if errors.Is(err, store.ErrNotFound) {
		user, err = s.repo.GetByEmail(ctx, strings.ToLower(profile.Email))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return types.User{}, err
		}
	}

	if err == nil {
		if user.Provider != provider || !user.IsVerified {
			user.Provider = provider
			user.ProviderID = profile.ID
			user.IsVerified = true
			if user.ProfilePicture == "" {
				user.ProfilePicture = profile.Picture
			}
			return s.repo.Update(ctx, user)
		}
		return user, nil
	}

	return s.createOAuthUser(ctx, provider, profile)
}

func (s *UserService) createOAuthUser(ctx context.Context, provider string, profile oauth.Profile) (types.User, error) {
	base := strings.ToLower(strings.ReplaceAll(profile.DisplayName, " ", "_"))
	if base == "" {
		base = provider
	}

	// Retry with a fresh suffix if the generated name collides.
	for attempt := 0; attempt < 5; attempt++ {
		user, err := s.repo.Create(ctx, types.User{
			Username:       fmt.Sprintf("%s_%s", base, newSecureToken()[:8]),
			Email:          strings.ToLower(profile.Email),
			Provider:       provider,
			ProviderID:     profile.ID,
			ProfilePicture: profile.Picture,
			IsVerified:     true,
			Role:           types.RoleUser,
		})
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		return user, err
	}
	return types.User{}, store.ErrDuplicate
}

// VerifyEmail consumes a verification token. Each token works exactly
// once.
func (s *UserService) VerifyEmail(ctx context.Context, token string) (types.User, error) {
	if token == "" {
		return types.User{}, ErrInvalidToken
	}
	user, err := s.repo.ConsumeVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidToken
		}
		return types.User{}, err
	}
	return user, nil
}

// ForgotPassword issues a reset token valid for one hour. Returns
// store.ErrNotFound for unknown emails; the handler hides that from
// the client to avoid account enumeration.
func (s *UserService) ForgotPassword(ctx context.Context, email string) (string, error) {
	token := newSecureToken()
	err := s.repo.SetResetToken(ctx, strings.ToLower(email), token, time.Now().Add(resetTokenTTL))
	if err != nil {
		return "", err
	}
	return token, nil
}

// ResetPassword consumes a reset token and replaces the password.
// Expired and already-used tokens fail identically.
func (s *UserService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" {
		return ErrInvalidToken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if _, err := s.repo.ConsumeResetToken(ctx, resetToken, string(hash), time.Now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	return nil
}

// UpdatePassword changes the password for an authenticated user.
// Local accounts must present their current password; OAuth accounts
// without one may set a password directly.
func (s *UserService) UpdatePassword(ctx context.Context, userID int, currentPassword, newPassword string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.PasswordHash != "" || user.Provider == types.ProviderLocal {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
			return ErrPasswordMismatch
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hash)
	_, err = s.repo.Update(ctx, user)
	return err
}

// UpdateProfile changes the username and/or profile picture.
func (s *UserService) UpdateProfile(ctx context.Context, userID int, username, profilePicture string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}
	if username != "" {
		user.Username = username
	}
	if profilePicture != "" {
		user.ProfilePicture = profilePicture
	}
	return s.repo.Update(ctx, user)
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// ListUniversityUsers returns the accounts of one university.
func (s *UserService) ListUniversityUsers(ctx context.Context, universityID int) ([]types.User, error) {
	return s.repo.ListByUniversity(ctx, universityID)
}

// AddUniversityUser creates a pre-verified local account under the
// given university, on behalf of a university admin.
func (s *UserService) AddUniversityUser(ctx context.Context, universityID int, username, email, password string) (types.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}
	return s.repo.Create(ctx, types.User{
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
		Provider:     types.ProviderLocal,
		IsVerified:   true,
		Role:         types.RoleUser,
		UniversityID: universityID,
	})
}

// DeleteUniversityUser removes a user, refusing when the target
// belongs to a different university than the requesting admin.
func (s *UserService) DeleteUniversityUser(ctx context.Context, universityID, userID int) error {
	target, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if target.UniversityID != universityID {
		return ErrNotOwned
	}
	return s.repo.Delete(ctx, userID)
}

func (s *UserService) ensureUniversity(ctx context.Context, details UniversityDetails) (types.University, error) {
	uni, err := s.universities.GetByName(ctx, details.Name)
	if err == nil {
		return uni, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.University{}, err
	}

	uni, err = s.universities.Create(ctx, types.University{
		Name:                details.Name,
		InstitutionType:     details.InstitutionType,
		Affiliation:         details.Affiliation,
		RegistrationNumber:  details.RegistrationNumber,
		YearOfEstablishment: details.YearOfEstablishment,
		Website:             details.Website,
		Logo:                details.Logo,
	})
	if errors.Is(err, store.ErrDuplicate) {
		// Lost a concurrent registration race; the row exists now.
		return s.universities.GetByName(ctx, details.Name)
	}
	return uni, err
}

// newSecureToken returns 32 random bytes hex-encoded, used for email
// verification and password reset tokens.
func newSecureToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}
