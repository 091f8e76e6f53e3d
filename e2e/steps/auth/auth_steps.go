package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Request(method, path, actor string, body any) error
	StatusCode() int
	ResponseBody() []byte
	ResponseString(field string) (string, error)
	SetSession(email, token, userID string)
	UserID(email string) (string, error)
	AdminEmail() string
	LatestCode(email string) (string, error)
}

// RegisterSteps registers OTP login and user verification step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authSteps{tc: tc}

	ctx.Step(`^"([^"]*)" requests a login code$`, steps.requestCode)
	ctx.Step(`^"([^"]*)" submits the code from the email$`, steps.submitMailedCode)
	ctx.Step(`^"([^"]*)" submits the code "([^"]*)"$`, steps.submitCode)
	ctx.Step(`^"([^"]*)" is logged in$`, steps.loggedIn)
	ctx.Step(`^the admin is logged in$`, steps.adminLoggedIn)
	ctx.Step(`^"([^"]*)" is a verified user$`, steps.verifiedUser)
	ctx.Step(`^"([^"]*)" views their profile$`, steps.viewProfile)
}

type authSteps struct {
	tc TestContext
}

func (s *authSteps) requestCode(ctx context.Context, email string) error {
	return s.tc.Request(http.MethodPost, "/auth/otp/send", "", map[string]string{"email": email})
}

func (s *authSteps) submitCode(ctx context.Context, email, code string) error {
	if err := s.tc.Request(http.MethodPost, "/auth/otp/verify", "", map[string]string{
		"email": email,
		"code":  code,
	}); err != nil {
		return err
	}
	if s.tc.StatusCode() != http.StatusOK {
		return nil
	}
	token, err := s.tc.ResponseString("access_token")
	if err != nil {
		return err
	}
	userID, err := s.tc.ResponseString("user_id")
	if err != nil {
		return err
	}
	s.tc.SetSession(email, token, userID)
	return nil
}

func (s *authSteps) submitMailedCode(ctx context.Context, email string) error {
	code, err := s.tc.LatestCode(email)
	if err != nil {
		return err
	}
	return s.submitCode(ctx, email, code)
}

func (s *authSteps) loggedIn(ctx context.Context, email string) error {
	if _, err := s.tc.UserID(email); err == nil {
		return nil
	}
	if err := s.requestCode(ctx, email); err != nil {
		return err
	}
	if s.tc.StatusCode() != http.StatusAccepted {
		return fmt.Errorf("send code for %s: status %d: %s", email, s.tc.StatusCode(), s.tc.ResponseBody())
	}
	if err := s.submitMailedCode(ctx, email); err != nil {
		return err
	}
	if s.tc.StatusCode() != http.StatusOK {
		return fmt.Errorf("login %s: status %d: %s", email, s.tc.StatusCode(), s.tc.ResponseBody())
	}
	return nil
}

func (s *authSteps) adminLoggedIn(ctx context.Context) error {
	return s.loggedIn(ctx, s.tc.AdminEmail())
}

func (s *authSteps) verifiedUser(ctx context.Context, email string) error {
	if err := s.adminLoggedIn(ctx); err != nil {
		return err
	}
	if err := s.loggedIn(ctx, email); err != nil {
		return err
	}
	userID, err := s.tc.UserID(email)
	if err != nil {
		return err
	}
	if err := s.tc.Request(http.MethodPut, "/admin/users/"+userID+"/verification", s.tc.AdminEmail(),
		map[string]string{"status": "VERIFIED"}); err != nil {
		return err
	}
	if s.tc.StatusCode() != http.StatusOK {
		return fmt.Errorf("verify %s: status %d: %s", email, s.tc.StatusCode(), s.tc.ResponseBody())
	}
	return nil
}

func (s *authSteps) viewProfile(ctx context.Context, email string) error {
	return s.tc.Request(http.MethodGet, "/users/me", email, nil)
}
