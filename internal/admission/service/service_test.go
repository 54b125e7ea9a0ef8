package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"chequeverify/internal/admission/metrics"
	"chequeverify/internal/admission/models"
	"chequeverify/internal/admission/store"
)

type AdmissionServiceSuite struct {
	suite.Suite
	now     time.Time
	metrics *metrics.Metrics
	service *Service
}

func TestAdmissionServiceSuite(t *testing.T) {
	suite.Run(t, new(AdmissionServiceSuite))
}

func (s *AdmissionServiceSuite) clock() time.Time { return s.now }

func (s *AdmissionServiceSuite) SetupTest() {
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.metrics = metrics.New(prometheus.NewRegistry())
	svc, err := New(store.NewInMemory(store.WithClock(s.clock)),
		WithClock(s.clock),
		WithMetrics(s.metrics),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *AdmissionServiceSuite) check(class models.Class, ip string) *models.Decision {
	d, err := s.service.Check(context.Background(), class, ip)
	s.Require().NoError(err)
	return d
}

func (s *AdmissionServiceSuite) TestVerifyStateProgression() {
	expected := []struct {
		state models.State
		delay time.Duration
	}{
		{models.StateNormal, 0},
		{models.StateNormal, 0},
		{models.StateSoftThreshold, 500 * time.Millisecond},
		{models.StateSoftThreshold, time.Second},
		{models.StateSoftThreshold, 1500 * time.Millisecond},
		{models.StateHardLimit, 0},
	}
	for i, want := range expected {
		d := s.check(models.ClassVerify, "203.0.113.7")
		s.Equal(want.state, d.State, "request %d", i+1)
		s.Equal(want.delay, d.Delay, "request %d", i+1)
		s.Equal(want.state != models.StateHardLimit, d.Allowed, "request %d", i+1)
	}
	s.Equal(float64(3), promtest.ToFloat64(s.metrics.Decisions.WithLabelValues("verify", "soft_threshold")))
}

func (s *AdmissionServiceSuite) TestHardLimitRetryAfter() {
	for range 5 {
		s.check(models.ClassVerify, "203.0.113.7")
	}
	s.now = s.now.Add(90 * time.Second)

	d := s.check(models.ClassVerify, "203.0.113.7")
	s.False(d.Allowed)
	s.Equal(0, d.Remaining)
	s.Equal(210, d.RetryAfter)
}

func (s *AdmissionServiceSuite) TestWindowResetReturnsToNormal() {
	for range 6 {
		s.check(models.ClassVerify, "203.0.113.7")
	}
	s.now = s.now.Add(5 * time.Minute)

	d := s.check(models.ClassVerify, "203.0.113.7")
	s.Equal(models.StateNormal, d.State)
	s.True(d.Allowed)
	s.Equal(4, d.Remaining)
}

func (s *AdmissionServiceSuite) TestClassesAndClientsAreIndependent() {
	for range 6 {
		s.check(models.ClassVerify, "203.0.113.7")
	}
	s.True(s.check(models.ClassVerify, "198.51.100.1").Allowed)
	s.True(s.check(models.ClassGeneral, "203.0.113.7").Allowed)
}

func (s *AdmissionServiceSuite) TestGeneralAndHealthNeverDelay() {
	for range 100 {
		d := s.check(models.ClassGeneral, "203.0.113.7")
		s.Equal(time.Duration(0), d.Delay)
		s.True(d.Allowed)
	}
	s.False(s.check(models.ClassGeneral, "203.0.113.7").Allowed)

	for range 60 {
		s.True(s.check(models.ClassHealth, "203.0.113.7").Allowed)
	}
	s.Equal(models.StateHardLimit, s.check(models.ClassHealth, "203.0.113.7").State)
}

func (s *AdmissionServiceSuite) TestUnknownClass() {
	_, err := s.service.Check(context.Background(), models.Class("bogus"), "203.0.113.7")
	s.Error(err)
}

type brokenCounter struct{}

func (brokenCounter) Increment(context.Context, string, time.Duration) (models.Window, error) {
	return models.Window{}, errors.New("redis: i/o timeout")
}

func TestCheck_StoreErrorIsReturned(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	svc, err := New(brokenCounter{}, WithMetrics(m), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	_, err = svc.Check(context.Background(), models.ClassVerify, "203.0.113.7")
	assert.Error(t, err)
	assert.Equal(t, float64(1), promtest.ToFloat64(m.StoreErrors))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(store.NewInMemory(), WithPolicy(models.ClassVerify, models.Policy{Limit: 0, Window: time.Minute}))
	assert.Error(t, err)

	svc, err := New(store.NewInMemory(), WithPolicy(models.ClassVerify, models.Policy{Limit: 1, Window: time.Second}))
	require.NoError(t, err)
	p, ok := svc.Policy(models.ClassVerify)
	assert.True(t, ok)
	assert.Equal(t, 1, p.Limit)
}

func TestPolicy_DelayFor(t *testing.T) {
	p := models.DefaultPolicies()[models.ClassVerify]
	p.Limit = 100
	assert.Equal(t, time.Duration(0), p.DelayFor(2))
	assert.Equal(t, 500*time.Millisecond, p.DelayFor(3))
	assert.Equal(t, 5*time.Second, p.DelayFor(12))
	assert.Equal(t, 5*time.Second, p.DelayFor(50), "capped at MaxDelay")
}
