package health

import (
	"context"
	"sync"
	"time"
)

// ComponentStatus представляет статус компонента.
type ComponentStatus string

const (
	StatusHealthy   ComponentStatus = "healthy"
	StatusUnhealthy ComponentStatus = "unhealthy"
)

// Probe — проверка доступности одного компонента (БД, брокер, шлюз).
type Probe func(ctx context.Context) error

// ComponentCheck — результат одной проверки.
type ComponentCheck struct {
	Name       string          `json:"name"`
	Status     ComponentStatus `json:"status"`
	Message    string          `json:"message,omitempty"`
	DurationMs int64           `json:"duration_ms"`
}

// Status — агрегированный ответ health check.
type Status struct {
	Healthy       bool                      `json:"healthy"`
	Timestamp     time.Time                 `json:"timestamp"`
	Checks        map[string]ComponentCheck `json:"checks,omitempty"`
	Version       string                    `json:"version,omitempty"`
	UptimeSeconds int64                     `json:"uptime_seconds"`
}

// Checker агрегирует проверки компонентов сервиса.
type Checker struct {
	mu        sync.RWMutex
	probes    map[string]Probe
	version   string
	startTime time.Time
}

// NewChecker создаёт пустой checker.
func NewChecker(version string) *Checker {
	return &Checker{
		probes:    make(map[string]Probe),
		version:   version,
		startTime: time.Now(),
	}
}

// Register регистрирует проверку компонента.
func (c *Checker) Register(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe
}

// Check выполняет все зарегистрированные проверки.
func (c *Checker) Check(ctx context.Context) Status {
	c.mu.RLock()
	probes := make(map[string]Probe, len(c.probes))
	for name, probe := range c.probes {
		probes[name] = probe
	}
	c.mu.RUnlock()

	checks := make(map[string]ComponentCheck, len(probes))
	healthy := true
	for name, probe := range probes {
		start := time.Now()
		err := probe(ctx)
		check := ComponentCheck{
			Name:       name,
			Status:     StatusHealthy,
			DurationMs: time.Since(start).Milliseconds(),
		}
		if err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
			healthy = false
		}
		checks[name] = check
	}

	return Status{
		Healthy:       healthy,
		Timestamp:     time.Now(),
		Checks:        checks,
		Version:       c.version,
		UptimeSeconds: int64(time.Since(c.startTime).Seconds()),
	}
}
