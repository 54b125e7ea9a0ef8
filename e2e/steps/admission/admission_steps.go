package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	SetClientIP(ip string)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers admission control steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &admissionSteps{tc: tc}

	ctx.Step(`^I am a client at IP "([^"]*)"$`, steps.clientAtIP)
	ctx.Step(`^I submit (\d+) verifications for cheque "([^"]*)"$`, steps.submitN)
	ctx.Step(`^every submission should have returned (\d+)$`, steps.everySubmissionReturned)
	ctx.Step(`^submissions after the (\d+)(?:st|nd|rd|th) should have been delayed$`, steps.laterSubmissionsDelayed)
}

type admissionSteps struct {
	tc        TestContext
	statuses  []int
	durations []time.Duration
}

func (s *admissionSteps) clientAtIP(ctx context.Context, ip string) error {
	s.tc.SetClientIP(ip)
	return nil
}

func (s *admissionSteps) submitN(ctx context.Context, n int, number string) error {
	s.statuses = s.statuses[:0]
	s.durations = s.durations[:0]
	for range n {
		start := time.Now()
		err := s.tc.POST("/api/cheque/verify", map[string]interface{}{
			"chequeNumber":     number,
			"appliedAmount":    "1000.50",
			"paymentIssueDate": "2024-01-01",
		})
		if err != nil {
			return err
		}
		s.durations = append(s.durations, time.Since(start))
		s.statuses = append(s.statuses, s.tc.GetLastResponseStatus())
	}
	return nil
}

func (s *admissionSteps) everySubmissionReturned(ctx context.Context, status int) error {
	for i, got := range s.statuses {
		if got != status {
			return fmt.Errorf("submission %d returned %d, expected %d", i+1, got, status)
		}
	}
	return nil
}

// laterSubmissionsDelayed checks the soft threshold: submissions past the
// free allowance take at least one delay step (500ms by default).
func (s *admissionSteps) laterSubmissionsDelayed(ctx context.Context, after int) error {
	const minDelay = 450 * time.Millisecond
	for i := after; i < len(s.durations); i++ {
		if s.durations[i] < minDelay {
			return fmt.Errorf("submission %d took %s, expected a delay", i+1, s.durations[i])
		}
	}
	return nil
}
