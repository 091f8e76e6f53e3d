package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Sender,TokenIssuer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"landledger/internal/auth/models"
	"landledger/internal/auth/service/mocks"
	"landledger/internal/auth/store"
	"landledger/internal/platform/metrics"
	usermodels "landledger/internal/users/models"
	userservice "landledger/internal/users/service"
	userstore "landledger/internal/users/store"
	dErrors "landledger/pkg/domain-errors"
	audit "landledger/pkg/platform/audit"
	"landledger/pkg/platform/audit/publishers/security"
	auditmemory "landledger/pkg/platform/audit/store/memory"
	"landledger/pkg/platform/tx"
	"landledger/pkg/requestcontext"
)

type OTPServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	sender   *mocks.MockSender
	tokens   *mocks.MockTokenIssuer
	store    *store.InMemory
	audits   *auditmemory.InMemoryStore
	security *security.Publisher
	metrics  *metrics.Metrics
	service  *Service
	now      time.Time
	ctx      context.Context
	code     string
}

func TestOTPServiceSuite(t *testing.T) {
	suite.Run(t, new(OTPServiceSuite))
}

func (s *OTPServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.sender = mocks.NewMockSender(s.ctrl)
	s.tokens = mocks.NewMockTokenIssuer(s.ctrl)
	s.store = store.NewInMemory()
	s.audits = auditmemory.NewInMemoryStore()
	s.security = security.New(s.audits)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.code = "482913"

	users := userservice.New(userstore.NewInMemory(), tx.NewShardedRunner(time.Second),
		userservice.WithAdminEmails([]string{"registrar@example.com"}))
	s.service = New(s.store, s.sender, users, s.tokens,
		WithMetrics(s.metrics),
		WithSecurityPublisher(s.security),
		WithCodeGenerator(func(int) (string, error) { return s.code, nil }),
	)
}

func (s *OTPServiceSuite) expectMail(to string) {
	s.sender.EXPECT().
		Send(gomock.Any(), to, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _, body string) error {
			s.Contains(body, s.code)
			return nil
		})
}

func (s *OTPServiceSuite) TestSendStoresOnlyTheHash() {
	s.expectMail("ana@example.com")

	s.Require().NoError(s.service.Send(s.ctx, " Ana@Example.com ", models.PurposeRegistration))

	c, err := s.store.Find(s.ctx, "ana@example.com")
	s.Require().NoError(err)
	s.NotEqual(s.code, c.CodeHash)
	s.Equal(models.PurposeRegistration, c.Purpose)
	s.Equal(s.now.Add(DefaultCodeTTL), c.ExpiresAt)
}

func (s *OTPServiceSuite) TestSendValidation() {
	err := s.service.Send(s.ctx, "ana@example.com", models.Purpose("RESET"))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	err = s.service.Send(s.ctx, "not-an-email", models.PurposeLogin)
	s.Error(err)
}

func (s *OTPServiceSuite) TestSendFailureDiscardsCode() {
	s.sender.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("ses down"))

	err := s.service.Send(s.ctx, "ana@example.com", models.PurposeLogin)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	_, findErr := s.store.Find(s.ctx, "ana@example.com")
	s.Error(findErr)
}

func (s *OTPServiceSuite) TestVerifyProvisionsUserAndIssuesToken() {
	s.expectMail("ana@example.com")
	s.Require().NoError(s.service.Send(s.ctx, "ana@example.com", models.PurposeRegistration))
	s.tokens.EXPECT().
		GenerateAccessToken(gomock.Any(), string(usermodels.RoleUser), DefaultTokenTTL).
		Return("signed-token", nil)

	result, err := s.service.Verify(s.ctx, "ana@example.com", s.code)
	s.Require().NoError(err)
	s.Equal("signed-token", result.AccessToken)
	s.Equal("Bearer", result.TokenType)
	s.Equal(string(usermodels.RoleUser), result.Role)
	s.False(result.Verified)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.OTPVerifications.WithLabelValues("success")))

	_, err = s.service.Verify(s.ctx, "ana@example.com", s.code)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "code is single use")
}

func (s *OTPServiceSuite) TestVerifyAdminAddress() {
	s.expectMail("registrar@example.com")
	s.Require().NoError(s.service.Send(s.ctx, "registrar@example.com", models.PurposeLogin))
	s.tokens.EXPECT().
		GenerateAccessToken(gomock.Any(), string(usermodels.RoleAdmin), DefaultTokenTTL).
		Return("admin-token", nil)

	result, err := s.service.Verify(s.ctx, "registrar@example.com", s.code)
	s.Require().NoError(err)
	s.Equal(string(usermodels.RoleAdmin), result.Role)
	s.True(result.Verified)
}

func (s *OTPServiceSuite) TestVerifyExpired() {
	s.expectMail("ana@example.com")
	s.Require().NoError(s.service.Send(s.ctx, "ana@example.com", models.PurposeLogin))

	later := requestcontext.WithTime(context.Background(), s.now.Add(DefaultCodeTTL))
	_, err := s.service.Verify(later, "ana@example.com", s.code)
	s.True(dErrors.HasCode(err, dErrors.CodeExpired))

	_, err = s.service.Verify(s.ctx, "ana@example.com", s.code)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "expired code was discarded")
}

func (s *OTPServiceSuite) TestVerifyLocksAfterMaxAttempts() {
	s.expectMail("ana@example.com")
	s.Require().NoError(s.service.Send(s.ctx, "ana@example.com", models.PurposeLogin))

	for i := 1; i < DefaultMaxAttempts; i++ {
		_, err := s.service.Verify(s.ctx, "ana@example.com", "000000")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "attempt %d", i)
	}
	_, err := s.service.Verify(s.ctx, "ana@example.com", "000000")
	s.True(dErrors.HasCode(err, dErrors.CodeTooManyAttempts))

	// the right code no longer works
	_, err = s.service.Verify(s.ctx, "ana@example.com", s.code)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	s.security.Flush(context.Background())
	events := s.audits.ListByAction(audit.EventOTPLockout)
	s.Require().Len(events, 1)
	s.Equal("ana@example.com", events[0].Subject)
	s.Equal(audit.SeverityWarning, events[0].Severity)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.OTPVerifications.WithLabelValues("locked")))
	s.Equal(float64(DefaultMaxAttempts-1), testutil.ToFloat64(s.metrics.OTPVerifications.WithLabelValues("mismatch")))
}

func (s *OTPServiceSuite) TestResendReplacesCode() {
	s.expectMail("ana@example.com")
	s.Require().NoError(s.service.Send(s.ctx, "ana@example.com", models.PurposeLogin))
	first := s.code

	s.code = "111222"
	s.expectMail("ana@example.com")
	s.Require().NoError(s.service.Send(s.ctx, "ana@example.com", models.PurposeLogin))

	_, err := s.service.Verify(s.ctx, "ana@example.com", first)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *OTPServiceSuite) TestVerifyRejectsMalformedCode() {
	for _, code := range []string{"", "12345", "1234567", "abcdef", strings.Repeat("9", 60)} {
		_, err := s.service.Verify(s.ctx, "ana@example.com", code)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation), "code %q", code)
	}
}
