package land

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
	ResponseField(field string) (any, error)
	ResponseString(field string) (string, error)
	UserID(email string) (string, error)
	AdminEmail() string
	Remember(name, value string)
	Recall(name string) (string, error)
}

// RegisterSteps registers parcel registration, claim and listing step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &landSteps{tc: tc}

	ctx.Step(`^the admin registers land "([^"]*)" with survey number "([^"]*)"$`, steps.registerLand)
	ctx.Step(`^the admin verifies land "([^"]*)"$`, steps.verifyLand)
	ctx.Step(`^the admin digitalizes land "([^"]*)"$`, steps.digitalizeLand)
	ctx.Step(`^"([^"]*)" claims land "([^"]*)"$`, steps.claimLand)
	ctx.Step(`^"([^"]*)" lists land "([^"]*)" for (\d+)$`, steps.listLand)
	ctx.Step(`^"([^"]*)" owns land "([^"]*)" listed for (\d+)$`, steps.ownsListedLand)
	ctx.Step(`^"([^"]*)" views land "([^"]*)"$`, steps.viewLand)
	ctx.Step(`^anyone looks up the certificate for land "([^"]*)"$`, steps.lookupCertificate)
	ctx.Step(`^land "([^"]*)" should have status "([^"]*)"$`, steps.landStatusShouldBe)
	ctx.Step(`^land "([^"]*)" should be owned by "([^"]*)"$`, steps.landOwnerShouldBe)
	ctx.Step(`^land "([^"]*)" should have (\d+) ownership records?$`, steps.historyLengthShouldBe)
	ctx.Step(`^land "([^"]*)" should not be on the market$`, steps.notOnMarket)
	ctx.Step(`^land "([^"]*)" should be listed for (\d+)$`, steps.listedFor)
}

type landSteps struct {
	tc TestContext
}

func (s *landSteps) expect(status int, what string) error {
	if got := s.tc.StatusCode(); got != status {
		return fmt.Errorf("%s: expected status %d, got %d: %s", what, status, got, s.tc.ResponseBody())
	}
	return nil
}

func (s *landSteps) registerLand(ctx context.Context, name, surveyNumber string) error {
	if err := s.tc.Request(http.MethodPost, "/lands", s.tc.AdminEmail(), map[string]any{
		"location": map[string]string{
			"state":         "Karnataka",
			"district":      "Mysuru",
			"taluka":        "Hunsur",
			"village":       "Bilikere",
			"survey_number": surveyNumber,
			"sub_division":  "1",
			"pincode":       "571105",
		},
		"boundaries": map[string]string{"north": "road", "south": "canal"},
		"area":       map[string]float64{"sqft": 2400},
		"land_type":  "RESIDENTIAL",
	}); err != nil {
		return err
	}
	if err := s.expect(http.StatusCreated, "register "+name); err != nil {
		return err
	}
	landID, err := s.tc.ResponseString("land_id")
	if err != nil {
		return err
	}
	assetID, err := s.tc.ResponseString("asset_id")
	if err != nil {
		return err
	}
	s.tc.Remember(name, landID)
	s.tc.Remember(name+".asset", assetID)
	return nil
}

func (s *landSteps) landAction(actor, name, action string, body any) error {
	landID, err := s.tc.Recall(name)
	if err != nil {
		return err
	}
	return s.tc.Request(http.MethodPost, "/lands/"+landID+action, actor, body)
}

func (s *landSteps) verifyLand(ctx context.Context, name string) error {
	if err := s.landAction(s.tc.AdminEmail(), name, "/verify", map[string]string{"decision": "VERIFIED"}); err != nil {
		return err
	}
	return s.expect(http.StatusOK, "verify "+name)
}

func (s *landSteps) digitalizeLand(ctx context.Context, name string) error {
	return s.landAction(s.tc.AdminEmail(), name, "/digitalize", nil)
}

func (s *landSteps) claimLand(ctx context.Context, email, name string) error {
	return s.landAction(email, name, "/claim", nil)
}

func (s *landSteps) listLand(ctx context.Context, email, name string, price int) error {
	landID, err := s.tc.Recall(name)
	if err != nil {
		return err
	}
	return s.tc.Request(http.MethodPost, "/marketplace/"+landID, email, map[string]any{
		"asking_price": price,
		"description":  "residential plot near the highway",
	})
}

func (s *landSteps) ownsListedLand(ctx context.Context, email, name string, price int) error {
	if err := s.registerLand(ctx, name, "SY-"+name); err != nil {
		return err
	}
	if err := s.verifyLand(ctx, name); err != nil {
		return err
	}
	if err := s.claimLand(ctx, email, name); err != nil {
		return err
	}
	if err := s.expect(http.StatusOK, "claim "+name); err != nil {
		return err
	}
	if err := s.listLand(ctx, email, name, price); err != nil {
		return err
	}
	return s.expect(http.StatusCreated, "list "+name)
}

func (s *landSteps) viewLand(ctx context.Context, email, name string) error {
	landID, err := s.tc.Recall(name)
	if err != nil {
		return err
	}
	return s.tc.Request(http.MethodGet, "/lands/"+landID, email, nil)
}

func (s *landSteps) lookupCertificate(ctx context.Context, name string) error {
	assetID, err := s.tc.Recall(name + ".asset")
	if err != nil {
		return err
	}
	return s.tc.Request(http.MethodGet, "/verify/"+assetID, "", nil)
}

// fetch loads the land as the admin so assertions see every field.
func (s *landSteps) fetch(name string) error {
	if err := s.viewLand(context.Background(), s.tc.AdminEmail(), name); err != nil {
		return err
	}
	return s.expect(http.StatusOK, "get "+name)
}

func (s *landSteps) landStatusShouldBe(ctx context.Context, name, status string) error {
	if err := s.fetch(name); err != nil {
		return err
	}
	got, err := s.tc.ResponseString("status")
	if err != nil {
		return err
	}
	if got != status {
		return fmt.Errorf("land %s: expected status %s, got %s", name, status, got)
	}
	return nil
}

func (s *landSteps) landOwnerShouldBe(ctx context.Context, name, email string) error {
	userID, err := s.tc.UserID(email)
	if err != nil {
		return err
	}
	if err := s.fetch(name); err != nil {
		return err
	}
	got, err := s.tc.ResponseString("current_owner")
	if err != nil {
		return err
	}
	if got != userID {
		return fmt.Errorf("land %s: expected owner %s, got %s", name, userID, got)
	}
	return nil
}

func (s *landSteps) historyLengthShouldBe(ctx context.Context, name string, n int) error {
	if err := s.fetch(name); err != nil {
		return err
	}
	v, err := s.tc.ResponseField("ownership_history")
	if err != nil {
		return err
	}
	history, ok := v.([]any)
	if !ok {
		return fmt.Errorf("ownership_history is %T", v)
	}
	if len(history) != n {
		return fmt.Errorf("land %s: expected %d ownership records, got %d", name, n, len(history))
	}
	return nil
}

func (s *landSteps) notOnMarket(ctx context.Context, name string) error {
	if err := s.fetch(name); err != nil {
		return err
	}
	if _, err := s.tc.ResponseField("market_info"); err == nil {
		return fmt.Errorf("land %s still carries market info: %s", name, s.tc.ResponseBody())
	}
	return nil
}

func (s *landSteps) listedFor(ctx context.Context, name string, price int) error {
	if err := s.fetch(name); err != nil {
		return err
	}
	v, err := s.tc.ResponseField("market_info.asking_price")
	if err != nil {
		return err
	}
	if got, ok := v.(float64); !ok || int(got) != price {
		return fmt.Errorf("land %s: expected asking price %d, got %v", name, price, v)
	}
	return nil
}
