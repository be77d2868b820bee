package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAndProbes(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker(2, time.Minute)
	b.now = func() time.Time { return now }

	assert.NoError(t, b.Allow())
	b.Failure()
	assert.NoError(t, b.Allow())
	b.Failure()

	assert.True(t, b.Open())
	assert.ErrorIs(t, b.Allow(), ErrOpen)

	now = now.Add(time.Minute)
	assert.NoError(t, b.Allow(), "probe allowed after cooldown")
	assert.ErrorIs(t, b.Allow(), ErrOpen, "only one probe at a time")

	b.Failure()
	assert.ErrorIs(t, b.Allow(), ErrOpen, "failed probe re-opens")

	now = now.Add(time.Minute)
	assert.NoError(t, b.Allow())
	b.Success()
	assert.False(t, b.Open())
	assert.NoError(t, b.Allow())
}

func TestBreakerSuccessResets(t *testing.T) {
	b := NewBreaker(2, time.Minute)
	b.Failure()
	b.Success()
	b.Failure()
	assert.False(t, b.Open())
}

func TestNewBreakerDefaults(t *testing.T) {
	b := NewBreaker(0, 0)
	assert.Equal(t, 5, b.threshold)
	assert.Equal(t, 30*time.Second, b.cooldown)
}
