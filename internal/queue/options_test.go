package queue

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoffGrowsAndCaps(t *testing.T) {
	policy := ExponentialBackoff(30*time.Second, 2, 15*time.Minute)

	assert.Equal(t, 30*time.Second, policy(0))
	assert.Equal(t, 30*time.Second, policy(1))
	assert.Equal(t, time.Minute, policy(2))
	assert.Equal(t, 8*time.Minute, policy(5))
	assert.Equal(t, 15*time.Minute, policy(6))
	assert.Equal(t, 15*time.Minute, policy(1000))
}

func TestExponentialBackoffWithoutCapSaturates(t *testing.T) {
	policy := ExponentialBackoff(30*time.Second, 2, 0)

	prev := time.Duration(0)
	for attempts := 1; attempts <= 200; attempts++ {
		d := policy(attempts)
		assert.Positive(t, d, "attempt %d", attempts)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempts)
		prev = d
	}
	assert.Equal(t, time.Duration(math.MaxInt64), policy(64))
	assert.Equal(t, time.Duration(math.MaxInt64), policy(math.MaxInt32))
}

func TestExponentialBackoffClampsFactorBelowOne(t *testing.T) {
	policy := ExponentialBackoff(time.Second, 0.5, 0)
	assert.Equal(t, time.Second, policy(10))
}
