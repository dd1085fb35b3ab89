package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

const storePingTimeout = 2 * time.Second

// HealthCheckResponse represents a comprehensive health check response
type HealthCheckResponse struct {
	Status        HealthStatus           `json:"status"`
	Timestamp     string                 `json:"timestamp"`
	EngineVersion string                 `json:"engine_version"`
	GitCommit     string                 `json:"git_commit,omitempty"`
	BuildTime     string                 `json:"build_time,omitempty"`
	Uptime        string                 `json:"uptime"`
	Checks        map[string]HealthCheck `json:"checks"`
	System        SystemInfo             `json:"system"`
	RequestID     string                 `json:"request_id,omitempty"`
}

// HealthCheck represents an individual health check
type HealthCheck struct {
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LastChecked string       `json:"last_checked"`
	Duration    string       `json:"duration,omitempty"`
}

// SystemInfo contains system information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	NumCPU        int    `json:"num_cpu"`
	MemoryAlloc   uint64 `json:"memory_alloc_bytes"`
	GCCycles      uint32 `json:"gc_cycles"`
}

// handleHealthCheck reports the store and dispatcher checks
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())

	checks := map[string]HealthCheck{
		"session_store": s.checkSessionStore(r.Context()),
		"dispatcher":    s.checkDispatcher(),
	}
	overallStatus := HealthStatusHealthy
	for _, c := range checks {
		if c.Status == HealthStatusUnhealthy {
			overallStatus = HealthStatusUnhealthy
			break
		}
		if c.Status == HealthStatusDegraded {
			overallStatus = HealthStatusDegraded
		}
	}

	statusCode := http.StatusOK
	if overallStatus == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	s.securityLogger.LogAuditEvent(requestID, "health_check", "system", string(overallStatus), map[string]interface{}{
		"checks":      len(checks),
		"status_code": statusCode,
	})

	s.writeJSON(w, statusCode, HealthCheckResponse{
		Status:        overallStatus,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		EngineVersion: EngineVersion,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
		Uptime:        time.Since(s.startTime).String(),
		Checks:        checks,
		System:        s.getSystemInfo(),
		RequestID:     requestID,
	})
}

// handleReadiness is ready once the session store answers
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())

	check := s.checkSessionStore(r.Context())
	ready := check.Status != HealthStatusUnhealthy

	statusCode := http.StatusOK
	outcome := "ready"
	if !ready {
		statusCode = http.StatusServiceUnavailable
		outcome = "not_ready"
	}
	s.securityLogger.LogAuditEvent(requestID, "readiness_check", "system", outcome, map[string]interface{}{
		"message": check.Message,
	})

	s.writeJSON(w, statusCode, map[string]interface{}{
		"ready":          ready,
		"message":        check.Message,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"engine_version": EngineVersion,
		"request_id":     requestID,
	})
}

// handleLiveness responds while the process is serving
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"alive":          true,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"engine_version": EngineVersion,
		"uptime":         time.Since(s.startTime).String(),
		"request_id":     middleware.GetReqID(r.Context()),
	})
}

func (s *Server) checkSessionStore(ctx context.Context) HealthCheck {
	start := time.Now()
	check := HealthCheck{Status: HealthStatusHealthy, Message: "Session store reachable"}

	if s.sessions == nil {
		check.Status = HealthStatusDegraded
		check.Message = "Session store has no health check"
	} else {
		ctx, cancel := context.WithTimeout(ctx, storePingTimeout)
		defer cancel()
		if err := s.sessions.Ping(ctx); err != nil {
			s.logger.Printf("store_ping_failed error=%v", err)
			check.Status = HealthStatusUnhealthy
			check.Message = "Session store unreachable"
		}
	}

	check.LastChecked = time.Now().UTC().Format(time.RFC3339)
	check.Duration = time.Since(start).String()
	return check
}

func (s *Server) checkDispatcher() HealthCheck {
	check := HealthCheck{
		Status:      HealthStatusHealthy,
		Message:     "Dispatcher ready",
		LastChecked: time.Now().UTC().Format(time.RFC3339),
	}
	if s.dispatcher == nil || len(s.dispatcher.Functions()) == 0 {
		check.Status = HealthStatusUnhealthy
		check.Message = "Dispatcher not initialized"
	}
	return check
}

// getSystemInfo collects system information
func (s *Server) getSystemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		MemoryAlloc:   m.Alloc,
		GCCycles:      m.NumGC,
	}
}
