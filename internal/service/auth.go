package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sankalp/sankalp/internal/apperror"
	"github.com/sankalp/sankalp/internal/auth"
	"github.com/sankalp/sankalp/internal/model"
	"github.com/sankalp/sankalp/internal/notify"
	"github.com/sankalp/sankalp/internal/repository"
)

// AuthService owns sign-up and sign-in for both login methods.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository → read/write user records
//   - tokens     *auth.TokenService        → issue session JWTs
//   - passwords  *auth.PasswordService     → bcrypt hashing
//   - otps       *auth.OTPStore            → email verification codes
//   - mail       notify.Publisher          → OTP and welcome emails
//
// A failed email hand-off is logged and never fails the request that
// triggered it; the user can ask for a new code.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	otps      *auth.OTPStore
	mail      notify.Publisher
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	otps *auth.OTPStore,
	mail notify.Publisher,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		otps:      otps,
		mail:      mail,
		logger:    logger,
	}
}

// AuthResult bundles the user and the issued JWT so the handler can set the
// cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginGoogle upserts the account behind a verified Google profile and
// issues a session token. First-time users get a welcome email.
func (s *AuthService) LoginGoogle(ctx context.Context, gu *auth.GoogleUser) (*AuthResult, error) {
	if gu == nil {
		return nil, fmt.Errorf("service/auth: Google user must not be nil")
	}

	name := strings.TrimSpace(gu.Name)
	if name == "" {
		name = strings.SplitN(gu.Email, "@", 2)[0]
	}
	user := &model.User{
		Name:          name,
		Email:         strings.ToLower(gu.Email),
		LoginType:     model.LoginGoogle,
		GoogleID:      gu.Sub,
		EmailVerified: true,
	}

	created, err := s.users.UpsertGoogleUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("service/auth: upserting Google user: %w", err)
	}

	s.logger.Info("user authenticated via Google",
		slog.String("user_id", user.ID),
		slog.Bool("created", created),
	)
	if created {
		s.publish(ctx, notify.WelcomeEmail(user.Email, user.Name))
	}

	return s.issue(user)
}

// RegisterInput is the body of POST /auth/register.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an unverified password account and emails a code.
// Registering again before verifying replaces the name and password and
// sends a fresh code.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	name := strings.TrimSpace(in.Name)
	if err := checkLength("name", name, 1, maxNameLen); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckStrength(in.Password); err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if user.EmailVerified || user.LoginType != model.LoginPassword {
			return nil, apperror.Conflict("user", email)
		}
		user.Name = name
		user.PasswordHash = hash
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: updating pending user: %w", err)
		}
	case errors.Is(err, apperror.ErrNotFound):
		user = &model.User{
			Name:               name,
			Email:              email,
			LoginType:          model.LoginPassword,
			PasswordHash:       hash,
			EmailNotifications: true,
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: creating user: %w", err)
		}
	default:
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	if err := s.sendOTP(ctx, email); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

// VerifyEmail consumes an OTP, marks the address verified and signs the
// user in.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (*AuthResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("otp", "verification code is invalid or expired")
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	if err := s.otps.Verify(ctx, email, strings.TrimSpace(code)); err != nil {
		switch {
		case errors.Is(err, auth.ErrOTPExpired):
			return nil, apperror.ValidationFailed("otp", "verification code is invalid or expired")
		case errors.Is(err, auth.ErrOTPInvalid):
			return nil, apperror.ValidationFailed("otp", "verification code is incorrect")
		default:
			return nil, fmt.Errorf("service/auth: verifying code: %w", err)
		}
	}

	if !user.EmailVerified {
		user.EmailVerified = true
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: marking %s verified: %w", user.ID, err)
		}
		s.publish(ctx, notify.WelcomeEmail(user.Email, user.Name))
	}

	return s.issue(user)
}

// ResendOTP issues a new code for a pending account. Unknown or already
// verified addresses succeed silently so the endpoint does not reveal which
// emails are registered.
func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}
	if user.EmailVerified || user.LoginType != model.LoginPassword {
		return nil
	}
	return s.sendOTP(ctx, email)
}

// Login checks an email and password. Every credential failure returns the
// same Unauthorized error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	badCredentials := apperror.Unauthorized("invalid email or password")

	email, err := normalizeEmail(email)
	if err != nil {
		return nil, badCredentials
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, badCredentials
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}
	if user.LoginType != model.LoginPassword || user.PasswordHash == "" {
		return nil, badCredentials
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, badCredentials
	}
	if !user.EmailVerified {
		return nil, apperror.Forbidden("email address is not verified")
	}

	s.logger.Info("user authenticated via password", slog.String("user_id", user.ID))
	return s.issue(user)
}

// ValidateToken returns the user ID a session token encodes.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) sendOTP(ctx context.Context, email string) error {
	code, err := s.otps.Issue(ctx, email)
	if err != nil {
		return fmt.Errorf("service/auth: issuing code: %w", err)
	}
	s.publish(ctx, notify.OTPEmail(email, code, auth.OTPTTL))
	return nil
}

func (s *AuthService) publish(ctx context.Context, msg notify.Message) {
	if err := s.mail.Publish(ctx, msg); err != nil {
		s.logger.Error("failed to hand off email",
			slog.String("kind", string(msg.Kind)),
			slog.String("error", err.Error()),
		)
	}
}
