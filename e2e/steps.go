package e2e

import (
	"github.com/cucumber/godog"

	"chequeverify/e2e/steps/admission"
	"chequeverify/e2e/steps/common"
	"chequeverify/e2e/steps/verification"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (health, status and field assertions)
	common.RegisterSteps(ctx, tc)

	// Register verification submission steps
	verification.RegisterSteps(ctx, tc)

	// Register admission control steps
	admission.RegisterSteps(ctx, tc)
}
