package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyNextDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 2}

	assert.Equal(t, time.Second, p.NextDelay(0))
	assert.Equal(t, time.Second, p.NextDelay(1))
	assert.Equal(t, 2*time.Second, p.NextDelay(2))
	assert.Equal(t, 4*time.Second, p.NextDelay(3))
	assert.Equal(t, 5*time.Second, p.NextDelay(4), "clamped to MaxDelay")

	assert.Equal(t, time.Second, RetryPolicy{}.NextDelay(1))
}

func TestRetryPolicyExhausted(t *testing.T) {
	none := RetryPolicy{}
	assert.True(t, none.Exhausted(1))

	two := RetryPolicy{MaxRetries: 2}
	assert.False(t, two.Exhausted(1))
	assert.False(t, two.Exhausted(2))
	assert.True(t, two.Exhausted(3))
}
