// Package service implements passwordless email login. A six digit code is
// mailed to the address; presenting it within its lifetime provisions the
// user on first login and returns an access token.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"landledger/internal/auth/models"
	"landledger/internal/auth/secrets"
	"landledger/internal/platform/metrics"
	"landledger/internal/platform/tracing"
	usermodels "landledger/internal/users/models"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/email"
	audit "landledger/pkg/platform/audit"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/requestcontext"
)

const (
	CodeLength         = 6
	DefaultCodeTTL     = 5 * time.Minute
	DefaultMaxAttempts = 5
	DefaultTokenTTL    = time.Hour
)

var codePattern = regexp.MustCompile(`^\d{6}$`)

type Store interface {
	Save(ctx context.Context, challenge *models.Challenge, ttl time.Duration) error
	Find(ctx context.Context, email string) (*models.Challenge, error)
	RecordAttempt(ctx context.Context, email string) (int, error)
	Delete(ctx context.Context, email string) error
}

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Users interface {
	FindOrCreateByEmail(ctx context.Context, address string) (*usermodels.User, error)
}

type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID, role string, expiresIn time.Duration) (string, error)
}

type SecurityPublisher interface {
	Emit(ctx context.Context, event audit.SecurityEvent)
}

type Service struct {
	store       Store
	sender      Sender
	users       Users
	tokens      TokenIssuer
	logger      *slog.Logger
	metrics     *metrics.Metrics
	security    SecurityPublisher
	codeTTL     time.Duration
	maxAttempts int
	tokenTTL    time.Duration
	generate    func(digits int) (string, error)
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithSecurityPublisher(p SecurityPublisher) Option {
	return func(s *Service) {
		s.security = p
	}
}

func WithCodeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.codeTTL = ttl
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithCodeGenerator replaces the random code source. Tests use it to know
// the code that was mailed.
func WithCodeGenerator(fn func(digits int) (string, error)) Option {
	return func(s *Service) {
		s.generate = fn
	}
}

func New(store Store, sender Sender, users Users, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		store:       store,
		sender:      sender,
		users:       users,
		tokens:      tokens,
		logger:      slog.Default(),
		codeTTL:     DefaultCodeTTL,
		maxAttempts: DefaultMaxAttempts,
		tokenTTL:    DefaultTokenTTL,
		generate:    secrets.GenerateCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send mails a fresh code to address, replacing any code still pending.
func (s *Service) Send(ctx context.Context, address string, purpose models.Purpose) (err error) {
	ctx, span := tracing.Start(ctx, "auth.SendOTP", attribute.String("purpose", string(purpose)))
	defer func() { tracing.End(span, err) }()

	if !purpose.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid purpose")
	}
	normalized, err := email.Normalize(address)
	if err != nil {
		return err
	}

	code, err := s.generate(CodeLength)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
	}
	hash, err := secrets.Hash(code)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash code")
	}

	now := requestcontext.Now(ctx)
	challenge := &models.Challenge{
		Email:     normalized,
		CodeHash:  hash,
		Purpose:   purpose,
		CreatedAt: now,
		ExpiresAt: now.Add(s.codeTTL),
	}
	if err := s.store.Save(ctx, challenge, s.codeTTL); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store code")
	}

	body := fmt.Sprintf("Your LandLedger verification code is %s. It expires in %d minutes.",
		code, int(s.codeTTL.Minutes()))
	if err := s.sender.Send(ctx, normalized, "Your verification code", body); err != nil {
		_ = s.store.Delete(ctx, normalized)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deliver code")
	}

	s.logger.InfoContext(ctx, "otp sent",
		"purpose", purpose,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// Verify consumes the pending code for address. A code works once; after
// maxAttempts wrong guesses it is discarded and a new one must be sent.
func (s *Service) Verify(ctx context.Context, address, code string) (result *models.LoginResult, err error) {
	ctx, span := tracing.Start(ctx, "auth.VerifyOTP")
	defer func() { tracing.End(span, err) }()

	normalized, err := email.Normalize(address)
	if err != nil {
		return nil, err
	}
	if !codePattern.MatchString(code) {
		return nil, dErrors.New(dErrors.CodeValidation, "code must be 6 digits")
	}

	challenge, err := s.store.Find(ctx, normalized)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.record("missing")
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired code")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load code")
	}
	if challenge.IsExpired(requestcontext.Now(ctx)) {
		_ = s.store.Delete(ctx, normalized)
		s.record("expired")
		return nil, dErrors.New(dErrors.CodeExpired, "code has expired")
	}
	if challenge.Attempts >= s.maxAttempts {
		s.record("locked")
		return nil, dErrors.New(dErrors.CodeTooManyAttempts, "too many attempts")
	}

	ok, err := secrets.Matches(code, challenge.CodeHash)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check code")
	}
	if !ok {
		return nil, s.rejectAttempt(ctx, normalized)
	}

	if err := s.store.Delete(ctx, normalized); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.record("reused")
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired code")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume code")
	}
	s.record("success")

	user, err := s.users.FindOrCreateByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.GenerateAccessToken(user.ID, string(user.Role), s.tokenTTL)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "otp login",
		"user_id", user.ID.String(),
		"purpose", challenge.Purpose,
		"request_id", requestcontext.RequestID(ctx),
	)
	return &models.LoginResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   requestcontext.Now(ctx).Add(s.tokenTTL),
		UserID:      user.ID.String(),
		Role:        string(user.Role),
		Verified:    user.IsVerified(),
	}, nil
}

func (s *Service) rejectAttempt(ctx context.Context, address string) error {
	attempts, err := s.store.RecordAttempt(ctx, address)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.record("missing")
			return dErrors.New(dErrors.CodeUnauthorized, "invalid or expired code")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record attempt")
	}
	if attempts < s.maxAttempts {
		s.record("mismatch")
		return dErrors.New(dErrors.CodeUnauthorized, "invalid code")
	}

	_ = s.store.Delete(ctx, address)
	s.record("locked")
	s.logger.WarnContext(ctx, "otp locked after repeated failures",
		"attempts", attempts,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.security != nil {
		s.security.Emit(ctx, audit.SecurityEvent{
			Timestamp: requestcontext.Now(ctx),
			Subject:   address,
			Action:    audit.EventOTPLockout,
			Reason:    fmt.Sprintf("%d failed attempts", attempts),
			RequestID: requestcontext.RequestID(ctx),
			Severity:  audit.SeverityWarning,
		})
	}
	return dErrors.New(dErrors.CodeTooManyAttempts, "too many attempts")
}

func (s *Service) record(result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.OTPVerifications.WithLabelValues(result).Inc()
}
