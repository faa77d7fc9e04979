package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffNext(t *testing.T) {
	b := Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 2.0}

	assert.Equal(t, time.Second, b.Next(1))
	assert.Equal(t, 2*time.Second, b.Next(2))
	assert.Equal(t, 4*time.Second, b.Next(3))
	assert.Equal(t, 16*time.Second, b.Next(5))

	// capped at Max from then on
	assert.Equal(t, 30*time.Second, b.Next(7))
	assert.Equal(t, 30*time.Second, b.Next(100))
}

func TestBackoffNextJitterBounds(t *testing.T) {
	b := Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 2.0, Jitter: 0.2}

	for range 100 {
		wait := b.Next(2)
		assert.GreaterOrEqual(t, wait, 1600*time.Millisecond)
		assert.LessOrEqual(t, wait, 2400*time.Millisecond)
	}
}

func TestBackoffNextZeroValueHasSaneDefaults(t *testing.T) {
	var b Backoff
	assert.Equal(t, time.Second, b.Next(0))
	assert.Equal(t, time.Second, b.Next(1))
	assert.LessOrEqual(t, b.Next(64), 30*time.Second)
}
