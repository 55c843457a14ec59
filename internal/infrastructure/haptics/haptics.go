// Package haptics gives the user a short physical cue when a still is taken.
// Hosts without a vibration motor fall back to the terminal bell.
package haptics

import (
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Bell rings the terminal bell on out. Pulses closer together than their
// own duration are coalesced.
type Bell struct {
	mu     sync.Mutex
	out    io.Writer
	until  time.Time
	logger *zap.SugaredLogger
}

func NewBell(out io.Writer, logger *zap.SugaredLogger) *Bell {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Bell{out: out, logger: logger}
}

func (b *Bell) Pulse(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if now.Before(b.until) {
		return
	}
	b.until = now.Add(d)

	if _, err := b.out.Write([]byte{'\a'}); err != nil {
		b.logger.Debugw("haptic pulse failed", "error", err)
	}
}

// Noop is used when haptics are disabled.
type Noop struct{}

func (Noop) Pulse(time.Duration) {}
