package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/auth"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
)

const (
	MinPasswordLength = 5
	// bcrypt ignores everything after the 72nd byte.
	MaxPasswordBytes = 72
	MaxNameLength    = 255
	MaxEmailLength   = 255
)

// Validation messages.
const (
	msgEmailRequired    = "Users must have an email address."
	msgEmailInvalid     = "Enter a valid email address."
	msgEmailTaken       = "user with this email already exists."
	msgBadCredentials   = "Unable to authenticate with provided credentials."
	msgSuperuserStaff   = "Superuser must have is_staff=True."
	msgSuperuserSuper   = "Superuser must have is_superuser=True."
	msgFieldBlank       = "This field may not be blank."
	msgPasswordTooShort = "Ensure this field has at least 5 characters."
	msgPasswordTooLong  = "Ensure this field has no more than 72 bytes."
	msgNameTooLong      = "Ensure this field has no more than 255 characters."
	msgEmailTooLong     = "Ensure this field has no more than 255 characters."
	nonFieldErrorsField = "non_field_errors"
	userResource        = "user"
)

// UserService is the user manager: it creates accounts, checks credentials
// and issues access tokens.
//
//	UserHandler (HTTP) → UserService → UserRepository (DB)
//	                               ↘ TokenService (JWT), PasswordService (bcrypt)
type UserService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued JWT.
type AuthResult struct {
	User  *model.User
	Token string
}

// NormalizeEmail trims whitespace and lowercases the domain part. The local
// part is left alone: "Foo@Example.COM" becomes "Foo@example.com".
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}

// CreateUser is the account factory. It normalizes the email, hashes the
// password and applies the flag defaults (active, not staff, not superuser).
// An empty password stores an unusable credential.
func (s *UserService) CreateUser(ctx context.Context, email, password string, fields model.UserFields) (*model.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", msgEmailRequired)
	}

	hash, err := s.hashOrUnusable(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        email,
		Name:         strings.TrimSpace(fields.Name),
		PasswordHash: hash,
		IsActive:     boolOr(fields.IsActive, true),
		IsStaff:      boolOr(fields.IsStaff, false),
		IsSuperuser:  boolOr(fields.IsSuperuser, false),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("email", msgEmailTaken)
		}
		s.logger.Error("failed to create user", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/user: creating user: %w", err)
	}

	s.logger.Info("user created",
		slog.Int64("userID", user.ID),
		slog.Bool("staff", user.IsStaff),
	)
	return user, nil
}

// CreateSuperuser forces is_staff and is_superuser on. Passing either flag
// explicitly as false is a validation error rather than being overridden.
func (s *UserService) CreateSuperuser(ctx context.Context, email, password string, fields model.UserFields) (*model.User, error) {
	if fields.IsStaff != nil && !*fields.IsStaff {
		return nil, apperror.ValidationFailed("is_staff", msgSuperuserStaff)
	}
	if fields.IsSuperuser != nil && !*fields.IsSuperuser {
		return nil, apperror.ValidationFailed("is_superuser", msgSuperuserSuper)
	}

	yes := true
	fields.IsStaff = &yes
	fields.IsSuperuser = &yes
	return s.CreateUser(ctx, email, password, fields)
}

// Register is the public sign-up path. Unlike CreateUser it requires a
// name and a password of at least MinPasswordLength characters, and reports
// every invalid field at once.
func (s *UserService) Register(ctx context.Context, email, password, name string) (*model.User, error) {
	errs := apperror.FieldErrors{}
	validateEmail(errs, email)
	validatePassword(errs, password)
	validateName(errs, name)
	if !errs.Empty() {
		return nil, apperror.Validation(errs)
	}

	return s.CreateUser(ctx, email, password, model.UserFields{Name: name})
}

// Authenticate checks email and password and issues a token. Unknown
// email, wrong password and inactive account all produce the same error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*AuthResult, error) {
	errs := apperror.FieldErrors{}
	if strings.TrimSpace(email) == "" {
		errs.Add("email", msgFieldBlank)
	}
	if password == "" {
		errs.Add("password", msgFieldBlank)
	}
	if !errs.Empty() {
		return nil, apperror.Validation(errs)
	}

	user, err := s.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.VerifyDummy(password)
			return nil, apperror.ValidationFailed(nonFieldErrorsField, msgBadCredentials)
		}
		return nil, fmt.Errorf("service/user: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, apperror.ValidationFailed(nonFieldErrorsField, msgBadCredentials)
		}
		return nil, fmt.Errorf("service/user: verifying password: %w", err)
	}
	if !user.IsActive {
		return nil, apperror.ValidationFailed(nonFieldErrorsField, msgBadCredentials)
	}

	return s.issue(user, "password")
}

// GetUserByID returns the user for the given ID.
//
// Also satisfies auth.UserLookup, so RequireAuth can check the account is
// still active on every request.
func (s *UserService) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	if id <= 0 {
		return nil, apperror.NotFound(userResource, fmt.Sprint(id))
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/user: fetching user %d: %w", id, err)
	}
	return user, nil
}

// UpdateProfile applies a partial update to the caller's own account.
// A new password is re-hashed; an email change is normalized and must stay
// unique.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, patch model.UserPatch) (*model.User, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	errs := apperror.FieldErrors{}
	if patch.Email != nil {
		validateEmail(errs, *patch.Email)
	}
	if patch.Name != nil {
		validateName(errs, *patch.Name)
	}
	if patch.Password != nil {
		validatePassword(errs, *patch.Password)
	}
	if !errs.Empty() {
		return nil, apperror.Validation(errs)
	}

	if patch.Email != nil {
		user.Email = NormalizeEmail(*patch.Email)
	}
	if patch.Name != nil {
		user.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Password != nil {
		hash, err := s.passwords.Hash(*patch.Password)
		if err != nil {
			return nil, fmt.Errorf("service/user: hashing password: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("email", msgEmailTaken)
		}
		return nil, fmt.Errorf("service/user: updating user %d: %w", userID, err)
	}

	s.logger.Info("profile updated", slog.Int64("userID", user.ID))
	return user, nil
}

// LoginOrRegisterGitHub signs in the account matching the GitHub primary
// email, creating it on first login. New accounts get an unusable password,
// so they can only sign in through GitHub until they set one.
func (s *UserService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/user: GitHub user must not be nil")
	}

	email := NormalizeEmail(ghUser.Email)
	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		name := ghUser.Name
		if name == "" {
			name = ghUser.Login
		}
		user, err = s.CreateUser(ctx, email, "", model.UserFields{Name: name})
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("service/user: looking up GitHub user %s: %w", ghUser.Login, err)
	}

	if !user.IsActive {
		return nil, apperror.Unauthorized("user account is disabled")
	}

	return s.issue(user, "github")
}

func (s *UserService) issue(user *model.User, method string) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/user: generating token for user %d: %w", user.ID, err)
	}

	s.logger.Info("user authenticated",
		slog.Int64("userID", user.ID),
		slog.String("method", method),
	)
	return &AuthResult{User: user, Token: token}, nil
}

func (s *UserService) hashOrUnusable(password string) (string, error) {
	if password == "" {
		return s.passwords.Unusable(), nil
	}
	if len(password) > MaxPasswordBytes {
		return "", apperror.ValidationFailed("password", msgPasswordTooLong)
	}
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return "", fmt.Errorf("service/user: hashing password: %w", err)
	}
	return hash, nil
}

func validateEmail(errs apperror.FieldErrors, email string) {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		errs.Add("email", msgFieldBlank)
	case len(email) > MaxEmailLength:
		errs.Add("email", msgEmailTooLong)
	default:
		addr, err := mail.ParseAddress(email)
		if err != nil || addr.Address != email {
			errs.Add("email", msgEmailInvalid)
		}
	}
}

// validatePassword counts characters for the minimum and bytes for the
// maximum, which is a bcrypt limit.
func validatePassword(errs apperror.FieldErrors, password string) {
	switch {
	case utf8.RuneCountInString(password) < MinPasswordLength:
		errs.Add("password", msgPasswordTooShort)
	case len(password) > MaxPasswordBytes:
		errs.Add("password", msgPasswordTooLong)
	}
}

func validateName(errs apperror.FieldErrors, name string) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		errs.Add("name", msgFieldBlank)
	case len([]rune(name)) > MaxNameLength:
		errs.Add("name", msgNameTooLong)
	}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
