package ratelimit

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	RequestWithHeaders(method, path, actor string, body any, headers map[string]string) error
	Request(method, path, actor string, body any) error
	StatusCode() int
	ResponseBody() []byte
	ResponseHeader(name string) string
	ResponseString(field string) (string, error)
	LatestCode(email string) (string, error)
}

// RegisterSteps registers login throttling and OTP lockout step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &rateLimitSteps{tc: tc}

	ctx.Step(`^(\d+) login codes are requested for "([^"]*)" from "([^"]*)"$`, steps.requestCodesFrom)
	ctx.Step(`^all but the last request should succeed$`, steps.allButLastSucceeded)
	ctx.Step(`^the last request should be throttled$`, steps.lastThrottled)
	ctx.Step(`^the response should carry a "([^"]*)" header$`, steps.headerPresent)
	ctx.Step(`^a login code is requested for "([^"]*)" from "([^"]*)"$`, steps.requestCodeFrom)
	ctx.Step(`^"([^"]*)" submits a wrong code (\d+) times$`, steps.submitWrongCode)
	ctx.Step(`^the wrong code attempts should be answered with "([^"]*)" until the last one$`, steps.attemptsAnswered)
	ctx.Step(`^the last wrong code attempt should return "([^"]*)"$`, steps.lastAttemptCode)
}

type rateLimitSteps struct {
	tc TestContext

	statuses []int
	codes    []string
}

func (s *rateLimitSteps) sendFrom(email, ip string) error {
	return s.tc.RequestWithHeaders(http.MethodPost, "/auth/otp/send", "",
		map[string]string{"email": email},
		map[string]string{"X-Forwarded-For": ip})
}

func (s *rateLimitSteps) requestCodesFrom(ctx context.Context, n int, email, ip string) error {
	s.statuses = s.statuses[:0]
	for i := 0; i < n; i++ {
		if err := s.sendFrom(email, ip); err != nil {
			return err
		}
		s.statuses = append(s.statuses, s.tc.StatusCode())
	}
	return nil
}

func (s *rateLimitSteps) requestCodeFrom(ctx context.Context, email, ip string) error {
	return s.requestCodesFrom(ctx, 1, email, ip)
}

func (s *rateLimitSteps) allButLastSucceeded(ctx context.Context) error {
	if len(s.statuses) == 0 {
		return fmt.Errorf("no requests were sent")
	}
	for i, status := range s.statuses[:len(s.statuses)-1] {
		if status != http.StatusAccepted {
			return fmt.Errorf("request %d: expected status %d, got %d", i+1, http.StatusAccepted, status)
		}
	}
	return nil
}

func (s *rateLimitSteps) lastThrottled(ctx context.Context) error {
	if len(s.statuses) == 0 {
		return fmt.Errorf("no requests were sent")
	}
	if last := s.statuses[len(s.statuses)-1]; last != http.StatusTooManyRequests {
		return fmt.Errorf("expected last request to be throttled, got %d: %s", last, s.tc.ResponseBody())
	}
	code, err := s.tc.ResponseString("error")
	if err != nil {
		return err
	}
	if code != "too_many_attempts" {
		return fmt.Errorf("expected error too_many_attempts, got %s", code)
	}
	return nil
}

func (s *rateLimitSteps) headerPresent(ctx context.Context, name string) error {
	if s.tc.ResponseHeader(name) == "" {
		return fmt.Errorf("response has no %s header", name)
	}
	return nil
}

// wrongCode never equals the mailed one.
func wrongCode(mailed string) string {
	b := []byte(mailed)
	last := b[len(b)-1]
	if last == '9' {
		b[len(b)-1] = '0'
	} else {
		b[len(b)-1] = last + 1
	}
	return string(b)
}

func (s *rateLimitSteps) submitWrongCode(ctx context.Context, email string, n int) error {
	mailed, err := s.tc.LatestCode(email)
	if err != nil {
		return err
	}
	s.codes = s.codes[:0]
	for i := 0; i < n; i++ {
		if err := s.tc.Request(http.MethodPost, "/auth/otp/verify", "", map[string]string{
			"email": email,
			"code":  wrongCode(mailed),
		}); err != nil {
			return err
		}
		code, err := s.tc.ResponseString("error")
		if err != nil {
			return err
		}
		s.codes = append(s.codes, code)
	}
	return nil
}

func (s *rateLimitSteps) attemptsAnswered(ctx context.Context, expected string) error {
	if len(s.codes) == 0 {
		return fmt.Errorf("no attempts were made")
	}
	for i, code := range s.codes[:len(s.codes)-1] {
		if code != expected {
			return fmt.Errorf("attempt %d: expected %s, got %s", i+1, expected, code)
		}
	}
	return nil
}

func (s *rateLimitSteps) lastAttemptCode(ctx context.Context, expected string) error {
	if len(s.codes) == 0 {
		return fmt.Errorf("no attempts were made")
	}
	if last := s.codes[len(s.codes)-1]; last != expected {
		return fmt.Errorf("expected last attempt to return %s, got %s", expected, last)
	}
	return nil
}
