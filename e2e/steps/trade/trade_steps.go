package trade

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Request(method, path, actor string, body any) error
	StatusCode() int
	ResponseBody() []byte
	ResponseField(field string) (any, error)
	ResponseString(field string) (string, error)
	AdminEmail() string
	Remember(name, value string)
	Recall(name string) (string, error)
}

// RegisterSteps registers buy request and transfer approval step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &tradeSteps{tc: tc}

	ctx.Step(`^"([^"]*)" offers (\d+) for land "([^"]*)" as request "([^"]*)"$`, steps.offer)
	ctx.Step(`^"([^"]*)" offers (\d+) for land "([^"]*)"$`, steps.offerUnnamed)
	ctx.Step(`^"([^"]*)" confirms request "([^"]*)"$`, steps.confirm)
	ctx.Step(`^"([^"]*)" declines request "([^"]*)" because "([^"]*)"$`, steps.decline)
	ctx.Step(`^"([^"]*)" cancels request "([^"]*)"$`, steps.cancel)
	ctx.Step(`^the admin approves request "([^"]*)"$`, steps.approve)
	ctx.Step(`^the admin rejects request "([^"]*)" because "([^"]*)"$`, steps.reject)
	ctx.Step(`^request "([^"]*)" should have status "([^"]*)"$`, steps.requestStatusShouldBe)
	ctx.Step(`^the timeline of request "([^"]*)" should mention "([^"]*)"$`, steps.timelineMentions)
	ctx.Step(`^the admin should see (\d+) pending transactions?$`, steps.pendingCount)
}

type tradeSteps struct {
	tc TestContext
}

func (s *tradeSteps) offer(ctx context.Context, email string, price int, land, name string) error {
	landID, err := s.tc.Recall(land)
	if err != nil {
		return err
	}
	if err := s.tc.Request(http.MethodPost, "/buy-requests", email, map[string]any{
		"land_id": landID,
		"price":   price,
		"message": "interested in the plot",
	}); err != nil {
		return err
	}
	if s.tc.StatusCode() != http.StatusCreated {
		return nil
	}
	requestID, err := s.tc.ResponseString("id")
	if err != nil {
		return err
	}
	s.tc.Remember(name, requestID)
	return nil
}

func (s *tradeSteps) offerUnnamed(ctx context.Context, email string, price int, land string) error {
	return s.offer(ctx, email, price, land, "latest")
}

func (s *tradeSteps) act(actor, name, path string, body any) error {
	requestID, err := s.tc.Recall(name)
	if err != nil {
		return err
	}
	return s.tc.Request(http.MethodPost, strings.ReplaceAll(path, "{id}", requestID), actor, body)
}

func (s *tradeSteps) confirm(ctx context.Context, email, name string) error {
	return s.act(email, name, "/buy-requests/{id}/confirm", nil)
}

func (s *tradeSteps) decline(ctx context.Context, email, name, reason string) error {
	return s.act(email, name, "/buy-requests/{id}/decline", map[string]string{"reason": reason})
}

func (s *tradeSteps) cancel(ctx context.Context, email, name string) error {
	return s.act(email, name, "/buy-requests/{id}/cancel", nil)
}

func (s *tradeSteps) approve(ctx context.Context, name string) error {
	return s.act(s.tc.AdminEmail(), name, "/admin/transactions/{id}/approve",
		map[string]string{"comments": "documents in order"})
}

func (s *tradeSteps) reject(ctx context.Context, name, reason string) error {
	return s.act(s.tc.AdminEmail(), name, "/admin/transactions/{id}/reject", map[string]string{"reason": reason})
}

func (s *tradeSteps) fetch(name string) error {
	requestID, err := s.tc.Recall(name)
	if err != nil {
		return err
	}
	if err := s.tc.Request(http.MethodGet, "/buy-requests/"+requestID, s.tc.AdminEmail(), nil); err != nil {
		return err
	}
	if s.tc.StatusCode() != http.StatusOK {
		return fmt.Errorf("get request %s: status %d: %s", name, s.tc.StatusCode(), s.tc.ResponseBody())
	}
	return nil
}

func (s *tradeSteps) requestStatusShouldBe(ctx context.Context, name, status string) error {
	if err := s.fetch(name); err != nil {
		return err
	}
	got, err := s.tc.ResponseString("status")
	if err != nil {
		return err
	}
	if got != status {
		return fmt.Errorf("request %s: expected status %s, got %s", name, status, got)
	}
	return nil
}

func (s *tradeSteps) timelineMentions(ctx context.Context, name, text string) error {
	if err := s.fetch(name); err != nil {
		return err
	}
	v, err := s.tc.ResponseField("timeline")
	if err != nil {
		return err
	}
	entries, ok := v.([]any)
	if !ok {
		return fmt.Errorf("timeline is %T", v)
	}
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if desc, _ := entry["description"].(string); strings.Contains(desc, text) {
			return nil
		}
	}
	return fmt.Errorf("no timeline entry of request %s mentions %q: %s", name, text, s.tc.ResponseBody())
}

func (s *tradeSteps) pendingCount(ctx context.Context, n int) error {
	if err := s.tc.Request(http.MethodGet, "/admin/transactions", s.tc.AdminEmail(), nil); err != nil {
		return err
	}
	v, err := s.tc.ResponseField("count")
	if err != nil {
		return err
	}
	if got, ok := v.(float64); !ok || int(got) != n {
		return fmt.Errorf("expected %d pending transactions, got %v", n, v)
	}
	return nil
}
