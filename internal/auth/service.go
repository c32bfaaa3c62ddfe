package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kariteco/storefront-core/internal/users"
	pkgAuth "github.com/kariteco/storefront-core/pkg/auth"
	"github.com/kariteco/storefront-core/pkg/auth/session"
	"github.com/kariteco/storefront-core/pkg/config"
	"github.com/kariteco/storefront-core/pkg/db/models"
	pkgerrors "github.com/kariteco/storefront-core/pkg/errors"
	"github.com/kariteco/storefront-core/pkg/logger"
	"github.com/kariteco/storefront-core/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controllers.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
	VerifyEmail(ctx context.Context, req VerifyEmailRequest) error
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	MarkEmailVerified(ctx context.Context, id uuid.UUID, at time.Time) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
}

type accountTokens interface {
	IssuePasswordReset(ctx context.Context, userID uuid.UUID) (string, error)
	ConsumePasswordReset(ctx context.Context, token string) (uuid.UUID, error)
	IssueEmailVerification(ctx context.Context, userID uuid.UUID) (string, error)
	ConsumeEmailVerification(ctx context.Context, token string) (uuid.UUID, error)
}

type mailSender interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

type service struct {
	users       userRepository
	session     sessionManager
	tokens      accountTokens
	mailer      mailSender
	logg        *logger.Logger
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
}

// ServiceParams bundles the dependencies required to build an auth service.
// Tokens and Mailer are optional: without them the password-reset and
// email-verification operations report themselves unavailable.
type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	Tokens         accountTokens
	Mailer         mailSender
	Logger         *logger.Logger
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
}

// NewService constructs an auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	return &service{
		users:       params.UserRepo,
		session:     params.SessionManager,
		tokens:      params.Tokens,
		mailer:      params.Mailer,
		logg:        params.Logger,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	now, err := s.recordLogin(ctx, user)
	if err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user, now)
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	hash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := s.users.Create(ctx, users.CreateUserDTO{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}

	// Verification mail is best effort; registration succeeds regardless.
	s.sendVerificationEmail(ctx, user)

	now, err := s.recordLogin(ctx, user)
	if err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user, now)
}

func (s *service) issueTokens(ctx context.Context, user *models.User, now time.Time) (*AuthResponse, error) {
	accessID := session.NewAccessID()
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	refreshToken, err := s.session.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refresh token")
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         users.FromModel(user),
	}, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := strings.TrimSpace(email)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByEmail(ctx, strings.ToLower(input))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

func (s *service) recordLogin(ctx context.Context, user *models.User) (time.Time, error) {
	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now
	return now, nil
}

// ForgotPassword issues a reset token and mails it to the account holder.
// Unknown emails return success so the endpoint cannot be used to discover
// which addresses hold accounts.
func (s *service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	if err := s.requireAccountRecovery(); err != nil {
		return err
	}
	if s.mailer == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "account recovery is not configured")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	token, err := s.tokens.IssuePasswordReset(ctx, user.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue reset token")
	}

	text := fmt.Sprintf(
		"We received a request to reset your Karité password.\n\n"+
			"Your reset code is: %s\n\n"+
			"The code expires in one hour. If you did not request this, you can ignore this email.",
		token,
	)
	if err := s.mailer.Send(ctx, user.Email, "Reset your Karité password", text, ""); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send reset email")
	}
	return nil
}

// ResetPassword redeems a reset token and replaces the account password.
func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := s.requireAccountRecovery(); err != nil {
		return err
	}

	userID, err := s.tokens.ConsumePasswordReset(ctx, req.Token)
	if err != nil {
		if errors.Is(err, ErrInvalidAccountToken) {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired reset token")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume reset token")
	}

	hash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update password")
	}
	return nil
}

// VerifyEmail redeems a verification token and stamps the account verified.
func (s *service) VerifyEmail(ctx context.Context, req VerifyEmailRequest) error {
	if err := s.requireAccountRecovery(); err != nil {
		return err
	}

	userID, err := s.tokens.ConsumeEmailVerification(ctx, req.Token)
	if err != nil {
		if errors.Is(err, ErrInvalidAccountToken) {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired verification token")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume verification token")
	}

	if err := s.users.MarkEmailVerified(ctx, userID, time.Now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark email verified")
	}
	return nil
}

func (s *service) requireAccountRecovery() error {
	if s.tokens == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "account recovery is not configured")
	}
	return nil
}

func (s *service) sendVerificationEmail(ctx context.Context, user *models.User) {
	if s.tokens == nil || s.mailer == nil {
		return
	}

	token, err := s.tokens.IssueEmailVerification(ctx, user.ID)
	if err == nil {
		text := fmt.Sprintf(
			"Welcome to Karité!\n\n"+
				"Your email verification code is: %s\n\n"+
				"The code expires in 24 hours.",
			token,
		)
		err = s.mailer.Send(ctx, user.Email, "Verify your Karité email", text, "")
	}
	if err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"user_id": user.ID.String(),
			"error":   err.Error(),
		}), "auth.verification_email.failed")
	}
}
