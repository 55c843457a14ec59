package haptics

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBell_CoalescesPulses(t *testing.T) {
	var out bytes.Buffer
	b := NewBell(&out, nil)

	b.Pulse(time.Hour)
	b.Pulse(time.Hour)
	assert.Equal(t, "\a", out.String())
}

func TestBell_PulsesAgainAfterDuration(t *testing.T) {
	var out bytes.Buffer
	b := NewBell(&out, nil)

	b.Pulse(time.Nanosecond)
	time.Sleep(time.Millisecond)
	b.Pulse(time.Nanosecond)
	assert.Equal(t, "\a\a", out.String())
}
