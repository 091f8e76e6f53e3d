package e2e

import (
	"github.com/cucumber/godog"

	"landledger/e2e/steps/auth"
	"landledger/e2e/steps/common"
	"landledger/e2e/steps/land"
	"landledger/e2e/steps/ratelimit"
	"landledger/e2e/steps/trade"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (generic assertions)
	common.RegisterSteps(ctx, tc)

	// Register OTP login and user verification steps
	auth.RegisterSteps(ctx, tc)

	// Register parcel registry and marketplace steps
	land.RegisterSteps(ctx, tc)

	// Register buy request and approval steps
	trade.RegisterSteps(ctx, tc)

	// Register throttling and lockout steps
	ratelimit.RegisterSteps(ctx, tc)
}
