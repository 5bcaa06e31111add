package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hackgods/emerald-details/internal/user"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidRole        = errors.New("invalid role")
)

// Mailer delivers transactional email such as verification and reset links.
type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, body string) error
}

type Config struct {
	TokenTTL      time.Duration
	EmailTokenTTL time.Duration
	// PublicURL prefixes links in emails, e.g. https://app.emeralddetails.com
	PublicURL string
}

type Service struct {
	users  user.Repository
	tokens *TokenIssuer
	mailer Mailer
	cfg    Config
	logger *slog.Logger
}

func NewService(users user.Repository, tokens *TokenIssuer, mailer Mailer, cfg Config, logger *slog.Logger) *Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.EmailTokenTTL <= 0 {
		cfg.EmailTokenTTL = 48 * time.Hour
	}
	return &Service{users: users, tokens: tokens, mailer: mailer, cfg: cfg, logger: logger}
}

type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      *user.User `json:"user"`
}

// SignUp creates an account with the given role and emails a verification
// link. Customers start with an empty garage, employees start available.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest, role user.Role) (*Session, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &user.User{
		ID:        uuid.New(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Role:      role,
		Available: role == user.RoleEmployee,
	}
	created, err := s.users.Create(ctx, u, string(hash))
	if err != nil {
		return nil, err
	}

	if err := s.sendVerification(ctx, created); err != nil {
		// the account exists; the user can ask for a new link
		s.logger.Warn("verification email failed", "user_id", created.ID, "err", err)
	}

	return s.session(created)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	id, hash, err := s.users.PasswordHash(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return s.session(u)
}

// Authenticate resolves a bearer access token to its principal.
func (s *Service) Authenticate(raw string) (Principal, error) {
	claims, err := s.tokens.Parse(raw, PurposeAccess)
	if err != nil {
		return Principal{}, err
	}
	id, _ := claims.UserID()
	return Principal{UserID: id, Role: claims.Role}, nil
}

func (s *Service) SendVerificationEmail(ctx context.Context, userID uuid.UUID) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.EmailVerified {
		return nil
	}
	return s.sendVerification(ctx, u)
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token, PurposeVerifyEmail)
	if err != nil {
		return err
	}
	id, _ := claims.UserID()
	return s.users.SetEmailVerified(ctx, id, true)
}

// RequestPasswordReset emails a reset link. Unknown addresses are accepted
// silently so the endpoint cannot be used to probe for accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	id, hash, err := s.users.PasswordHash(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("load credentials: %w", err)
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	token, err := s.tokens.Issue(id, u.Role, PurposePasswordReset, s.cfg.EmailTokenTTL, fingerprint(hash))
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Hi %s,\n\nReset your Emerald Details password here:\n%s/reset-password?token=%s\n\nIf you did not ask for this, ignore this email.\n",
		u.Name, s.cfg.PublicURL, token)
	if err := s.mailer.Send(ctx, u.Email, u.Name, "Reset your password", body); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if err := validatePassword(password, confirm); err != nil {
		return err
	}
	claims, err := s.tokens.Parse(token, PurposePasswordReset)
	if err != nil {
		return err
	}
	id, _ := claims.UserID()

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	_, current, err := s.users.PasswordHash(ctx, u.Email)
	if err != nil {
		return err
	}
	if fingerprint(current) != claims.Fingerprint {
		return ErrInvalidToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.SetPasswordHash(ctx, id, string(hash))
}

func (s *Service) sendVerification(ctx context.Context, u *user.User) error {
	token, err := s.tokens.Issue(u.ID, u.Role, PurposeVerifyEmail, s.cfg.EmailTokenTTL, "")
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Welcome to Emerald Details, %s!\n\nConfirm your email address:\n%s/verify-email?token=%s\n",
		u.Name, s.cfg.PublicURL, token)
	return s.mailer.Send(ctx, u.Email, u.Name, "Verify your email", body)
}

func (s *Service) session(u *user.User) (*Session, error) {
	token, err := s.tokens.Issue(u.ID, u.Role, PurposeAccess, s.cfg.TokenTTL, "")
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: s.tokens.now().Add(s.cfg.TokenTTL), User: u}, nil
}

func fingerprint(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}
