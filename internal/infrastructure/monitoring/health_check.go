package monitoring

import (
	"context"
	"sync"
	"time"

	"camcapture/internal/core/domain"
	"camcapture/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type HealthChecker struct {
	checks []HealthCheck
	mu     sync.RWMutex
}

type HealthCheck struct {
	Name    string
	Check   func(ctx context.Context) error
	Timeout time.Duration
	// Optional checks report "degraded" instead of failing the whole status.
	Optional bool
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks: make([]HealthCheck, 0),
	}
}

func (h *HealthChecker) AddCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if check.Timeout <= 0 {
		check.Timeout = 2 * time.Second
	}
	h.checks = append(h.checks, check)
}

// AddPlatformCheck verifies the capture backend can be driven.
func (h *HealthChecker) AddPlatformCheck(p ports.Platform, timeout time.Duration) {
	h.AddCheck(HealthCheck{
		Name:    "platform." + p.Name(),
		Check:   p.HealthCheck,
		Timeout: timeout,
	})
}

func (h *HealthChecker) AddRedisCheck(client *redis.Client, timeout time.Duration) {
	h.AddCheck(HealthCheck{
		Name: "redis",
		Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		Timeout:  timeout,
		Optional: true,
	})
}

// AddTranscoderCheck reports whether mp4 conversion is possible. A missing
// transcoder only degrades the service.
func (h *HealthChecker) AddTranscoderCheck(t ports.Transcoder, timeout time.Duration) {
	h.AddCheck(HealthCheck{
		Name: "transcoder",
		Check: func(ctx context.Context) error {
			if !t.Available(ctx) {
				return domain.ErrTranscoderMissing
			}
			return nil
		},
		Timeout:  timeout,
		Optional: true,
	})
}

func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	for _, check := range h.checks {
		checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
		err := check.Check(checkCtx)
		cancel()

		switch {
		case err == nil:
			status.Checks[check.Name] = "healthy"
		case check.Optional:
			status.Checks[check.Name] = err.Error()
			if status.Status == "healthy" {
				status.Status = "degraded"
			}
		default:
			status.Checks[check.Name] = err.Error()
			status.Status = "unhealthy"
		}
	}

	return status
}

// IsReady checks if the service is ready to accept traffic. Degraded counts
// as ready.
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status != "unhealthy"
}
