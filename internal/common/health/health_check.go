package health

import (
	"context"
	"runtime"
	"sync"
	"time"

	"gorm.io/gorm"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus represents the overall health of the application
type HealthStatus struct {
	Status    string                     `json:"status"`
	Timestamp time.Time                  `json:"timestamp"`
	Version   string                     `json:"version"`
	Checks    map[string]ComponentHealth `json:"checks"`
	Duration  int64                      `json:"duration_ms"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Healthy   bool   `json:"healthy"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// SystemMetrics captures current system metrics
type SystemMetrics struct {
	MemoryUsageMB  uint64 `json:"memory_usage_mb"`
	SysMemoryMB    uint64 `json:"sys_memory_mb"`
	NumGC          uint32 `json:"num_gc"`
	GoroutineCount int    `json:"goroutine_count"`
	CPUNumCores    int    `json:"cpu_num_cores"`
	Uptime         int64  `json:"uptime_seconds"`
}

// CheckFunc probes one dependency. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// HealthChecker provides health check functionality
type HealthChecker struct {
	db        *gorm.DB
	version   string
	startTime time.Time
	timeout   time.Duration

	mu              sync.RWMutex
	extra           map[string]CheckFunc
	lastCheckStatus string
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(db *gorm.DB, version string) *HealthChecker {
	return &HealthChecker{
		db:        db,
		version:   version,
		startTime: time.Now(),
		timeout:   2 * time.Second,
		extra:     make(map[string]CheckFunc),
	}
}

// Register adds a named dependency probe, e.g. the redis event bus.
// Failing extra checks degrade the status but never make it unhealthy.
func (hc *HealthChecker) Register(name string, fn CheckFunc) {
	hc.mu.Lock()
	hc.extra[name] = fn
	hc.mu.Unlock()
}

// Check performs a complete health check
func (hc *HealthChecker) Check(ctx context.Context) HealthStatus {
	start := time.Now()
	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: start.UTC(),
		Version:   hc.version,
		Checks:    make(map[string]ComponentHealth),
	}

	db := hc.probe(ctx, hc.pingDatabase)
	status.Checks["database"] = db
	if !db.Healthy {
		status.Status = StatusUnhealthy
	}

	hc.mu.RLock()
	extra := make(map[string]CheckFunc, len(hc.extra))
	for name, fn := range hc.extra {
		extra[name] = fn
	}
	hc.mu.RUnlock()

	for name, fn := range extra {
		result := hc.probe(ctx, fn)
		status.Checks[name] = result
		if !result.Healthy && status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
	}

	if runtime.NumGoroutine() >= 10000 && status.Status == StatusHealthy {
		status.Status = StatusDegraded
	}

	status.Duration = time.Since(start).Milliseconds()

	hc.mu.Lock()
	hc.lastCheckStatus = status.Status
	hc.mu.Unlock()

	return status
}

func (hc *HealthChecker) probe(ctx context.Context, fn CheckFunc) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	result := ComponentHealth{
		Healthy:   err == nil,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

func (hc *HealthChecker) pingDatabase(ctx context.Context) error {
	if hc.db == nil {
		return errDatabaseNotInitialized
	}
	sqlDB, err := hc.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// IsHealthy returns true if the last check was healthy
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.lastCheckStatus == StatusHealthy
}

// IsReady returns true if system is ready to serve traffic
func (hc *HealthChecker) IsReady(ctx context.Context) bool {
	return hc.probe(ctx, hc.pingDatabase).Healthy
}

// IsAlive returns true if system is running
func (hc *HealthChecker) IsAlive() bool {
	return true
}

// GetMetrics returns current system metrics
func (hc *HealthChecker) GetMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemMetrics{
		MemoryUsageMB:  m.Alloc / 1024 / 1024,
		SysMemoryMB:    m.Sys / 1024 / 1024,
		NumGC:          m.NumGC,
		GoroutineCount: runtime.NumGoroutine(),
		CPUNumCores:    runtime.NumCPU(),
		Uptime:         int64(time.Since(hc.startTime).Seconds()),
	}
}
