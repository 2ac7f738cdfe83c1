package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/lecture-notes/backend/internal/apperr"
	"github.com/ayush/lecture-notes/backend/internal/mail"
	"github.com/ayush/lecture-notes/backend/internal/models"
	"github.com/ayush/lecture-notes/backend/internal/store"
)

// DefaultOTPTTL is how long a freshly issued code stays valid.
const DefaultOTPTTL = 30 * time.Minute

var (
	ErrEmailTaken    = apperr.New(apperr.KindConflict, "email_taken", "Email already registered")
	ErrNotFound      = apperr.New(apperr.KindNotFound, "not_found", "Email not found")
	ErrNotVerified   = apperr.New(apperr.KindForbidden, "not_verified", "Account not verified. Please verify OTP from signup.")
	ErrBadCredential = apperr.New(apperr.KindUnauthorized, "bad_credential", "Incorrect password")
	ErrInvalidCode   = apperr.New(apperr.KindValidation, "invalid_code", "Invalid OTP")
	ErrCodeExpired   = apperr.New(apperr.KindValidation, "code_expired", "OTP expired")
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetOTP(ctx context.Context, email, code string, expiry time.Time) error
	MarkVerified(ctx context.Context, email string) error
}

// Service implements sign-up, code verification and sign-in.
type Service struct {
	users  UserStore
	mailer mail.Sender
	codes  func() (string, error)
	now    func() time.Time
	otpTTL time.Duration
	log    *slog.Logger
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCodeGenerator replaces GenerateOTP.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.codes = gen }
}

// WithOTPTTL overrides DefaultOTPTTL.
func WithOTPTTL(ttl time.Duration) Option {
	return func(s *Service) { s.otpTTL = ttl }
}

func NewService(users UserStore, mailer mail.Sender, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		users:  users,
		mailer: mailer,
		codes:  GenerateOTP,
		now:    time.Now,
		otpTTL: DefaultOTPTTL,
		log:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp stores an unverified user and mails it a one-time code.
func (s *Service) SignUp(ctx context.Context, req models.SignUpRequest) (*models.User, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" || strings.TrimSpace(req.FirstName) == "" {
		return nil, apperr.Validation("first_name, email and password are required")
	}
	if !models.ValidRole(req.Role) {
		return nil, apperr.Validation("role must be teacher or student")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, apperr.Validation("password is too long")
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}
	code, err := s.codes()
	if err != nil {
		return nil, err
	}
	expiry := s.now().Add(s.otpTTL)

	user := &models.User{
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		Email:      email,
		Password:   string(hashed),
		PhoneNo:    strings.TrimSpace(req.PhoneNo),
		Role:       req.Role,
		OTP:        code,
		ExpiryTime: &expiry,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		if apperr.KindOf(err) == apperr.KindDataIntegrity {
			return nil, apperr.Validation("email is invalid").Wrap(err)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.sendCode(ctx, user.FirstName, email, code)
	return user, nil
}

// VerifyOTP marks the account verified when code matches and has not
// expired. Verifying an already verified account succeeds without changes;
// the returned flag reports that case.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || code == "" {
		return false, apperr.Validation("Email and OTP are required")
	}

	user, err := s.getUser(ctx, email)
	if err != nil {
		return false, err
	}
	if user.IsVerified {
		return true, nil
	}
	if user.OTP == "" || user.OTP != code {
		return false, ErrInvalidCode
	}
	if user.ExpiryTime == nil || !s.now().Before(*user.ExpiryTime) {
		return false, ErrCodeExpired
	}

	if err := s.users.MarkVerified(ctx, email); err != nil {
		return false, fmt.Errorf("mark verified: %w", err)
	}
	s.log.InfoContext(ctx, "account verified", "email", email)
	return false, nil
}

// ResendOTP issues a fresh code to an unverified account.
func (s *Service) ResendOTP(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return false, apperr.Validation("Email is required")
	}

	user, err := s.getUser(ctx, email)
	if err != nil {
		return false, err
	}
	if user.IsVerified {
		return true, nil
	}

	code, err := s.codes()
	if err != nil {
		return false, err
	}
	if err := s.users.SetOTP(ctx, email, code, s.now().Add(s.otpTTL)); err != nil {
		return false, fmt.Errorf("set otp: %w", err)
	}
	s.sendCode(ctx, user.FirstName, email, code)
	return false, nil
}

// SignIn checks credentials and returns the user's role.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", apperr.Validation("Email and password are required")
	}

	user, err := s.getUser(ctx, email)
	if err != nil {
		return "", err
	}
	if !user.IsVerified {
		return "", ErrNotVerified
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", ErrBadCredential
	}
	return user.Role, nil
}

func (s *Service) getUser(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// sendCode mails a code. Failures are logged; the user can ask for a resend.
func (s *Service) sendCode(ctx context.Context, firstName, email, code string) {
	subject, body := mail.OTPMessage(firstName, code, s.otpTTL)
	if err := s.mailer.Send(ctx, email, subject, body); err != nil {
		s.log.ErrorContext(ctx, "otp mail failed", "email", email, "err", err)
	}
}
