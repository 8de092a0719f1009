package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/dealcart/deals-platform/pkg/auth"
	"github.com/dealcart/deals-platform/pkg/config"
	"github.com/dealcart/deals-platform/pkg/events"
	"github.com/dealcart/deals-platform/services/auth/internal/domain"
)

type mockUserRepo struct {
	users  map[int64]*domain.User
	nextID int64
	taken  map[string]bool // verification tokens already in use
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users: make(map[int64]*domain.User),
		taken: make(map[string]bool),
	}
}

func (m *mockUserRepo) Create(ctx context.Context, req *domain.CreateUserRequest, passwordHash, verificationToken string) (*domain.User, error) {
	m.nextID++
	role, _ := domain.ParseRole(req.Role)
	now := time.Now()
	user := &domain.User{
		ID:                m.nextID,
		Name:              req.Name,
		Email:             req.Email,
		PasswordHash:      passwordHash,
		Role:              role,
		VerificationToken: &verificationToken,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	m.users[user.ID] = user
	m.taken[verificationToken] = true
	return user, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepo) FindByVerificationToken(ctx context.Context, token string) (*domain.User, error) {
	for _, u := range m.users {
		if u.VerificationToken != nil && *u.VerificationToken == token {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) VerificationTokenTaken(ctx context.Context, token string) (bool, error) {
	return m.taken[token], nil
}

func (m *mockUserRepo) VerifyEmail(ctx context.Context, userID int64) error {
	u := m.users[userID]
	now := time.Now()
	u.VerifiedAt = &now
	u.VerificationToken = nil
	return nil
}

func (m *mockUserRepo) SetPasswordReset(ctx context.Context, userID int64, token string) error {
	return nil
}

func (m *mockUserRepo) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id int64) error {
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) UpdateRole(ctx context.Context, userID int64, role domain.Role) error {
	m.users[userID].Role = role
	return nil
}

type mockEventBus struct {
	published []string
}

func (m *mockEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	m.published = append(m.published, subject)
	return nil
}

func (m *mockEventBus) Subscribe(subject string, handler func(msg *events.Message)) error {
	return nil
}

func (m *mockEventBus) QueueSubscribe(subject, queue string, handler func(msg *events.Message)) error {
	return nil
}

func (m *mockEventBus) Close() error { return nil }

func (m *mockEventBus) has(subject string) bool {
	for _, s := range m.published {
		if s == subject {
			return true
		}
	}
	return false
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:        "test-secret",
			SessionTTL:       time.Hour,
			PasswordResetTTL: 2 * time.Hour,
		},
	}
}

func registerRequest() *domain.CreateUserRequest {
	return &domain.CreateUserRequest{
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
		Password: "s3cret-pw",
		Role:     "customer",
	}
}

func TestRegisterGeneratesVerificationToken(t *testing.T) {
	repo := newMockUserRepo()
	bus := &mockEventBus{}
	svc := NewAuthService(repo, bus, testConfig())

	user, err := svc.Register(context.Background(), registerRequest())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.VerificationToken == nil || *user.VerificationToken == "" {
		t.Fatal("expected a verification token to be assigned")
	}
	if user.Activated() {
		t.Error("new user should not be activated yet")
	}
}

func TestRegisterKeepsPreSeededToken(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, &mockEventBus{}, testConfig())

	req := registerRequest()
	req.VerificationToken = "seeded-token-123"

	user, err := svc.Register(context.Background(), req)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.VerificationToken == nil || *user.VerificationToken != "seeded-token-123" {
		t.Errorf("pre-seeded token not kept, got %v", user.VerificationToken)
	}
}

func TestRegisterPublishesEventForCustomersOnly(t *testing.T) {
	repo := newMockUserRepo()
	bus := &mockEventBus{}
	svc := NewAuthService(repo, bus, testConfig())

	if _, err := svc.Register(context.Background(), registerRequest()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !bus.has(events.UserRegistered) {
		t.Error("expected user.registered event for customer")
	}

	bus.published = nil
	admin := registerRequest()
	admin.Email = "root@example.com"
	admin.Role = "admin"
	if _, err := svc.Register(context.Background(), admin); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if bus.has(events.UserRegistered) {
		t.Error("admin registration should not trigger a verification email")
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, &mockEventBus{}, testConfig())

	if _, err := svc.Register(context.Background(), registerRequest()); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	_, err := svc.Register(context.Background(), registerRequest())
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected duplicate email error, got %v", err)
	}
}

func TestRegisterValidatesPasswordLength(t *testing.T) {
	svc := NewAuthService(newMockUserRepo(), &mockEventBus{}, testConfig())

	short := registerRequest()
	short.Password = "abc"
	if _, err := svc.Register(context.Background(), short); err == nil {
		t.Error("expected error for password below minimum length")
	}

	long := registerRequest()
	long.Password = strings.Repeat("x", domain.MaxPasswordLength+1)
	if _, err := svc.Register(context.Background(), long); err == nil {
		t.Error("expected error for password above maximum length")
	}
}

func TestVerifyEmailActivatesUser(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, &mockEventBus{}, testConfig())

	req := registerRequest()
	req.VerificationToken = "tok-abc"
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	user, err := svc.VerifyEmail(context.Background(), "tok-abc")
	if err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}
	if !user.Activated() {
		t.Error("user should be activated after verification")
	}
	if user.VerificationToken != nil {
		t.Error("verification token should be cleared after use")
	}
}

func TestVerifyEmailRejectsUnknownToken(t *testing.T) {
	svc := NewAuthService(newMockUserRepo(), &mockEventBus{}, testConfig())

	_, err := svc.VerifyEmail(context.Background(), "no-such-token")
	if err == nil || !strings.Contains(err.Error(), "invalid verification token") {
		t.Errorf("expected invalid token error, got %v", err)
	}
}

func TestLoginRejectsUnverifiedUser(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, &mockEventBus{}, testConfig())

	if _, err := svc.Register(context.Background(), registerRequest()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "ada@example.com",
		Password: "s3cret-pw",
	})
	if err == nil || !strings.Contains(err.Error(), "not verified") {
		t.Errorf("expected unverified error, got %v", err)
	}
}

func TestLoginReturnsSessionToken(t *testing.T) {
	repo := newMockUserRepo()
	cfg := testConfig()
	svc := NewAuthService(repo, &mockEventBus{}, cfg)

	req := registerRequest()
	req.VerificationToken = "tok-login"
	user, err := svc.Register(context.Background(), req)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := svc.VerifyEmail(context.Background(), "tok-login"); err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}

	resp, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "ada@example.com",
		Password: "s3cret-pw",
	})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	claims, err := auth.Parse(resp.SessionToken, cfg.Auth.JWTSecret)
	if err != nil {
		t.Fatalf("session token does not parse: %v", err)
	}
	if claims.Sub != user.ID {
		t.Errorf("claims.Sub = %d, want %d", claims.Sub, user.ID)
	}
	if claims.Role != "customer" {
		t.Errorf("claims.Role = %q, want %q", claims.Role, "customer")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, &mockEventBus{}, testConfig())

	req := registerRequest()
	req.VerificationToken = "tok-pw"
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := svc.VerifyEmail(context.Background(), "tok-pw"); err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}

	_, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "ada@example.com",
		Password: "wrong-password",
	})
	if err == nil || !strings.Contains(err.Error(), "invalid credentials") {
		t.Errorf("expected invalid credentials, got %v", err)
	}
}

func TestPasswordHashesAreArgon2id(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, &mockEventBus{}, testConfig())

	user, err := svc.Register(context.Background(), registerRequest())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	ok, err := argon2id.ComparePasswordAndHash("s3cret-pw", user.PasswordHash)
	if err != nil {
		t.Fatalf("ComparePasswordAndHash() error = %v", err)
	}
	if !ok {
		t.Error("stored hash does not match the original password")
	}
}
