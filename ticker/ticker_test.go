package ticker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStopwatch(t *testing.T) {
	s := NewStopwatch()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, s.Get(), 5*time.Millisecond)
	assert.GreaterOrEqual(t, s.GetAsMS(), uint32(5))
}

func TestGetSinceInitialize(t *testing.T) {
	Initialize()
	assert.Less(t, Get(), time.Second)
}
