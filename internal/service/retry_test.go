package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttemptStopsOnFirstValidResult(t *testing.T) {
	calls := 0
	result := Attempt(func() int {
		calls++
		return calls
	}, 5, func(v int) bool { return v >= 2 })

	assert.Equal(t, 2, result)
	assert.Equal(t, 2, calls)
}

func TestAttemptReturnsLastResultAfterExhaustion(t *testing.T) {
	calls := 0
	result := Attempt(func() string {
		calls++
		return "invalid"
	}, 3, func(string) bool { return false })

	assert.Equal(t, "invalid", result)
	assert.Equal(t, 3, calls)
}

func TestAttemptRunsAtLeastOnce(t *testing.T) {
	calls := 0
	Attempt(func() int {
		calls++
		return 0
	}, 1, func(int) bool { return true })

	assert.Equal(t, 1, calls)
}
