package exporter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPauseBackoff_Bounds(t *testing.T) {
	for i := 0; i < 1000; i++ {
		d := PauseBackoff()
		assert.GreaterOrEqual(t, d, 5*time.Second)
		assert.Less(t, d, 15*time.Second)
	}
}

func TestFastBackoff(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, fastBackoff(0))
	assert.Equal(t, 500*time.Millisecond, fastBackoff(1))
	assert.Equal(t, time.Second, fastBackoff(2))
	assert.Equal(t, 2*time.Second, fastBackoff(3))
	assert.Equal(t, 4*time.Second, fastBackoff(4))
	assert.Equal(t, 4*time.Second, fastBackoff(10), "capped")
}
