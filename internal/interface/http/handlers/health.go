// Package handlers contains HTTP handler interfaces and implementations.
package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH STATUS
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecker reports the health of the process and its dependencies.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthCheckFunc checks one dependency; a non-nil error marks it unhealthy.
type HealthCheckFunc func(ctx context.Context) error

// HealthStatus is the body of /health.
type HealthStatus struct {
	Healthy bool `json:"healthy"`

	// Ready is false while any check fails; /ready answers 503 then.
	Ready bool `json:"ready"`

	Message   string                 `json:"message,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPOSITE HEALTH CHECKER
// ══════════════════════════════════════════════════════════════════════════════

// DefaultCheckTimeout bounds a single check when no timeout is configured.
const DefaultCheckTimeout = 5 * time.Second

// CompositeHealthChecker runs named checks concurrently, each under its own
// timeout, and folds them into one status.
type CompositeHealthChecker struct {
	version string
	timeout time.Duration
	started time.Time

	mu     sync.RWMutex
	checks map[string]HealthCheckFunc
}

// NewCompositeHealthChecker creates a checker. A non-positive timeout uses
// DefaultCheckTimeout.
func NewCompositeHealthChecker(version string, timeout time.Duration) *CompositeHealthChecker {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &CompositeHealthChecker{
		version: version,
		timeout: timeout,
		started: time.Now(),
		checks:  make(map[string]HealthCheckFunc),
	}
}

// AddCheck registers a check, replacing any check of the same name.
func (c *CompositeHealthChecker) AddCheck(name string, check HealthCheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Check implements HealthChecker.
func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := make(map[string]HealthCheckFunc, len(c.checks))
	for name, fn := range c.checks {
		checks[name] = fn
	}
	c.mu.RUnlock()

	status := HealthStatus{
		Healthy:   true,
		Ready:     true,
		Checks:    make(map[string]CheckResult, len(checks)),
		Uptime:    time.Since(c.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}
	if len(checks) == 0 {
		status.Message = "No health checks registered"
		return status
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []string
	)
	for name, fn := range checks {
		wg.Add(1)
		go func(name string, fn HealthCheckFunc) {
			defer wg.Done()
			res := c.run(ctx, fn)

			mu.Lock()
			defer mu.Unlock()
			status.Checks[name] = res
			if !res.Healthy {
				failed = append(failed, name)
			}
		}(name, fn)
	}
	wg.Wait()

	if len(failed) == 0 {
		status.Message = "All checks passed"
		return status
	}
	sort.Strings(failed)
	status.Healthy, status.Ready = false, false
	status.Message = "Some checks failed: " + strings.Join(failed, ", ")
	return status
}

func (c *CompositeHealthChecker) run(ctx context.Context, fn HealthCheckFunc) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	res := CheckResult{Healthy: err == nil, Message: "OK", Duration: time.Since(start).Round(time.Millisecond).String()}
	if err != nil {
		res.Message = err.Error()
	}
	return res
}

// ══════════════════════════════════════════════════════════════════════════════
// CHECKS
// ══════════════════════════════════════════════════════════════════════════════

// Pinger is a dependency that can answer a liveness ping (Postgres pool,
// voice tracker).
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewPingCheck creates a health check that pings a dependency.
func NewPingCheck(p Pinger) HealthCheckFunc {
	return p.Ping
}

// NewFreshnessCheck fails when last() is older than maxAge. A zero time is
// reported as "never" only after grace has elapsed since start, so a fresh
// process is not flagged before its first run.
func NewFreshnessCheck(what string, last func() time.Time, maxAge, grace time.Duration) HealthCheckFunc {
	start := time.Now()
	return func(ctx context.Context) error {
		t := last()
		if t.IsZero() {
			if time.Since(start) > grace {
				return fmt.Errorf("%s never ran", what)
			}
			return nil
		}
		if age := time.Since(t); age > maxAge {
			return fmt.Errorf("%s last ran %s ago", what, age.Round(time.Second))
		}
		return nil
	}
}
