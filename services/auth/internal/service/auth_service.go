package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/dealcart/deals-platform/pkg/auth"
	"github.com/dealcart/deals-platform/pkg/config"
	"github.com/dealcart/deals-platform/pkg/events"
	"github.com/dealcart/deals-platform/pkg/logger"
	"github.com/dealcart/deals-platform/pkg/token"
	"github.com/dealcart/deals-platform/services/auth/internal/domain"
	"github.com/dealcart/deals-platform/services/auth/internal/repository"
)

type AuthService interface {
	Register(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	VerifyEmail(ctx context.Context, verificationToken string) (*domain.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)
	DeleteUser(ctx context.Context, id int64) error
	UpdateUserRole(ctx context.Context, userID int64, role string) error
}

type authService struct {
	userRepo repository.UserRepository
	eventBus events.EventBus
	config   *config.Config
}

func NewAuthService(userRepo repository.UserRepository, eventBus events.EventBus, config *config.Config) AuthService {
	return &authService{
		userRepo: userRepo,
		eventBus: eventBus,
		config:   config,
	}
}

func (s *authService) Register(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	existing, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("user with this email already exists")
	}

	// Pre-seeded tokens are kept as-is; otherwise generate one the users
	// table does not know yet.
	verificationToken := req.VerificationToken
	if verificationToken == "" {
		verificationToken, err = token.Generate(ctx, s.userRepo.VerificationTokenTaken)
		if err != nil {
			return nil, fmt.Errorf("failed to generate verification token: %w", err)
		}
	}

	passwordHash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, req, passwordHash, verificationToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Admins are exempt from verification mail.
	if user.IsCustomer() {
		event := events.UserRegisteredEvent{
			UserID:            user.ID,
			Email:             user.Email,
			Name:              user.Name,
			VerificationToken: verificationToken,
			CreatedAt:         user.CreatedAt,
		}
		if err := s.eventBus.Publish(ctx, events.UserRegistered, event); err != nil {
			logger.ErrorContext(ctx, "Failed to publish user registered event", "error", err, "user_id", user.ID)
		}
	}

	return user, nil
}

func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	if !user.Activated() {
		return nil, fmt.Errorf("email not verified")
	}

	valid, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, fmt.Errorf("invalid credentials")
	}

	sessionToken, err := auth.NewSessionToken(
		user.ID,
		user.Email,
		user.Role.String(),
		s.scopeFor(user.Role),
		s.config.Auth.JWTSecret,
		s.config.Auth.SessionTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	return &domain.LoginResponse{
		SessionToken: sessionToken,
		ExpiresIn:    int64(s.config.Auth.SessionTTL.Seconds()),
		User:         user.ToUserInfo(),
	}, nil
}

func (s *authService) VerifyEmail(ctx context.Context, verificationToken string) (*domain.User, error) {
	user, err := s.userRepo.FindByVerificationToken(ctx, verificationToken)
	if err != nil {
		return nil, fmt.Errorf("failed to look up verification token: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("invalid verification token")
	}

	if err := s.userRepo.VerifyEmail(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("failed to verify email: %w", err)
	}

	return s.userRepo.FindByID(ctx, user.ID)
}

func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// Don't reveal if user exists or not
		return nil
	}

	resetToken, err := token.New()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	if err := s.userRepo.SetPasswordReset(ctx, user.ID, resetToken); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	event := events.PasswordResetRequestedEvent{
		UserID:     user.ID,
		Email:      user.Email,
		ResetToken: resetToken,
		ExpiresAt:  time.Now().Add(s.config.Auth.PasswordResetTTL),
	}
	if err := s.eventBus.Publish(ctx, events.UserPasswordResetAsked, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish password reset event", "error", err, "user_id", user.ID)
	}

	return nil
}

func (s *authService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.userRepo.FindByID(ctx, id)
}

func (s *authService) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	return s.userRepo.List(ctx, limit, offset)
}

func (s *authService) DeleteUser(ctx context.Context, id int64) error {
	return s.userRepo.Delete(ctx, id)
}

func (s *authService) UpdateUserRole(ctx context.Context, userID int64, role string) error {
	parsed, ok := domain.ParseRole(role)
	if !ok {
		return fmt.Errorf("invalid role: %s", role)
	}
	return s.userRepo.UpdateRole(ctx, userID, parsed)
}

func (s *authService) scopeFor(role domain.Role) string {
	switch role {
	case domain.RoleAdmin:
		return "admin:read admin:write deals:read deals:write users:read users:write"
	default:
		return "cart:read cart:write orders:read:self"
	}
}
