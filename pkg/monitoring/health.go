package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck represents a single health check result
type HealthCheck struct {
	Name        string       `json:"name"`
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LastChecked time.Time    `json:"last_checked"`
}

// HealthReport represents the overall health report
type HealthReport struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Service   string        `json:"service"`
	Checks    []HealthCheck `json:"checks"`
}

// CheckerFunc adapts a plain function into a health checker
type CheckerFunc func(ctx context.Context) error

// HealthManager runs registered component checks and aggregates them.
// The write store is authoritative: a failing write store marks the
// service unhealthy, while a failing read store or cache only degrades it.
type HealthManager struct {
	serviceName string
	critical    map[string]CheckerFunc
	optional    map[string]CheckerFunc
	mu          sync.RWMutex
	timeout     time.Duration
}

// NewHealthManager creates a new health manager
func NewHealthManager(serviceName string) *HealthManager {
	return &HealthManager{
		serviceName: serviceName,
		critical:    make(map[string]CheckerFunc),
		optional:    make(map[string]CheckerFunc),
		timeout:     5 * time.Second,
	}
}

// RegisterCritical registers a checker whose failure makes the service unhealthy
func (hm *HealthManager) RegisterCritical(name string, checker CheckerFunc) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.critical[name] = checker
}

// RegisterOptional registers a checker whose failure only degrades the service
func (hm *HealthManager) RegisterOptional(name string, checker CheckerFunc) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.optional[name] = checker
}

// CheckHealth performs all health checks and returns a report
func (hm *HealthManager) CheckHealth(ctx context.Context) *HealthReport {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, hm.timeout)
	defer cancel()

	report := &HealthReport{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Service:   hm.serviceName,
	}

	for name, checker := range hm.critical {
		check := runCheck(ctx, name, checker)
		if check.Status == HealthStatusUnhealthy {
			report.Status = HealthStatusUnhealthy
		}
		report.Checks = append(report.Checks, check)
	}

	for name, checker := range hm.optional {
		check := runCheck(ctx, name, checker)
		if check.Status == HealthStatusUnhealthy && report.Status == HealthStatusHealthy {
			report.Status = HealthStatusDegraded
		}
		report.Checks = append(report.Checks, check)
	}

	return report
}

// Handler exposes the health report over HTTP
func (hm *HealthManager) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := hm.CheckHealth(r.Context())

		status := http.StatusOK
		if report.Status == HealthStatusUnhealthy {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(report)
	})
}

func runCheck(ctx context.Context, name string, checker CheckerFunc) HealthCheck {
	check := HealthCheck{
		Name:        name,
		Status:      HealthStatusHealthy,
		LastChecked: time.Now().UTC(),
	}

	if err := checker(ctx); err != nil {
		check.Status = HealthStatusUnhealthy
		check.Message = err.Error()
	}

	return check
}
