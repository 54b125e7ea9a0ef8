package verification

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

const verifyPath = "/api/cheque/verify"

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	POSTRaw(path, body string) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseBody() []byte
}

// RegisterSteps registers verification submission steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &verificationSteps{tc: tc}

	ctx.Step(`^I verify cheque "([^"]*)" with amount "([^"]*)" issued on "([^"]*)"$`, steps.verify)
	ctx.Step(`^I verify cheque "([^"]*)" with numeric amount ([0-9.]+) issued on "([^"]*)"$`, steps.verifyNumericAmount)
	ctx.Step(`^I submit the raw verification body:$`, steps.submitRaw)
	ctx.Step(`^the mismatch reasons should be:$`, steps.reasonsShouldBe)
	ctx.Step(`^the response should not echo "([^"]*)"$`, steps.shouldNotEcho)
}

type verificationSteps struct {
	tc TestContext
}

func (s *verificationSteps) verify(ctx context.Context, number, amount, date string) error {
	return s.tc.POST(verifyPath, map[string]interface{}{
		"chequeNumber":     number,
		"appliedAmount":    amount,
		"paymentIssueDate": date,
	})
}

func (s *verificationSteps) verifyNumericAmount(ctx context.Context, number, amount, date string) error {
	body := fmt.Sprintf(`{"chequeNumber":%q,"appliedAmount":%s,"paymentIssueDate":%q}`, number, amount, date)
	return s.tc.POSTRaw(verifyPath, body)
}

func (s *verificationSteps) submitRaw(ctx context.Context, body *godog.DocString) error {
	return s.tc.POSTRaw(verifyPath, body.Content)
}

func (s *verificationSteps) reasonsShouldBe(ctx context.Context, table *godog.Table) error {
	got, err := s.tc.GetResponseField("details")
	if err != nil {
		return err
	}
	details, ok := got.([]interface{})
	if !ok {
		return fmt.Errorf("details is not a list: %v", got)
	}
	if len(details) != len(table.Rows) {
		return fmt.Errorf("expected %d reasons, got %v", len(table.Rows), details)
	}
	for i, row := range table.Rows {
		if want := row.Cells[0].Value; details[i] != want {
			return fmt.Errorf("reason %d: expected %q, got %v", i, want, details[i])
		}
	}
	return nil
}

func (s *verificationSteps) shouldNotEcho(ctx context.Context, value string) error {
	if strings.Contains(string(s.tc.GetLastResponseBody()), value) {
		return fmt.Errorf("response echoed %q", value)
	}
	return nil
}
