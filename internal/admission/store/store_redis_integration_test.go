//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"chequeverify/internal/admission/models"
	"chequeverify/internal/admission/store"
	"chequeverify/pkg/testutil/containers"
)

type RedisCounterIntegrationSuite struct {
	suite.Suite
	redis   *containers.RedisContainer
	counter *store.RedisCounter
}

func TestRedisCounterIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCounterIntegrationSuite))
}

func (s *RedisCounterIntegrationSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.counter = store.NewRedis(s.redis.Client)
}

func (s *RedisCounterIntegrationSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCounterIntegrationSuite) TestWindowExpiresOnServer() {
	ctx := context.Background()
	key := models.NewKey(models.ClassVerify, "203.0.113.7")

	w, err := s.counter.Increment(ctx, key, 500*time.Millisecond)
	s.Require().NoError(err)
	s.Equal(1, w.Count)

	w, err = s.counter.Increment(ctx, key, 500*time.Millisecond)
	s.Require().NoError(err)
	s.Equal(2, w.Count)

	s.Eventually(func() bool {
		w, err := s.counter.Increment(ctx, key, 500*time.Millisecond)
		return err == nil && w.Count == 1
	}, 3*time.Second, 100*time.Millisecond)
}

func (s *RedisCounterIntegrationSuite) TestConcurrentIncrementsAreAtomic() {
	ctx := context.Background()
	key := models.NewKey(models.ClassGeneral, "198.51.100.1")

	const workers = 50
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.counter.Increment(ctx, key, time.Minute)
			s.NoError(err)
		}()
	}
	wg.Wait()

	w, err := s.counter.Increment(ctx, key, time.Minute)
	s.Require().NoError(err)
	s.Equal(workers+1, w.Count)
	s.WithinDuration(time.Now().Add(time.Minute), w.ResetAt, 5*time.Second)
}
