package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/response"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck checks one dependency.
type HealthCheck func(ctx context.Context) error

// SessionCounter reports connected students.
type SessionCounter interface {
	ActiveSessions() int
}

// SystemHandler reports service health, runtime stats and worker backlog.
type SystemHandler struct {
	rdb       redis.Cmdable
	checks    map[string]HealthCheck
	sessions  SessionCounter
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a SystemHandler. rdb and sessions may be nil.
func NewSystemHandler(rdb redis.Cmdable, checks map[string]HealthCheck, sessions SessionCounter, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		rdb:       rdb,
		checks:    checks,
		sessions:  sessions,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type healthReport struct {
	Status         string            `json:"status"`
	Uptime         string            `json:"uptime"`
	Checks         map[string]string `json:"checks"`
	ActiveSessions int               `json:"active_sessions"`
	Goroutines     int               `json:"goroutines"`
	HeapAlloc      uint64            `json:"heap_alloc"`
	GoVersion      string            `json:"go_version"`

	Queues map[string]queueDepth `json:"queues,omitempty"`
}

type queueDepth struct {
	Pending int64 `json:"pending"`
	Dead    int64 `json:"dead"`
}

// Health godoc
// GET /health
// 200 when every dependency answers, 503 otherwise.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	report := h.collect(ctx)
	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	response.Success(c, status, report)
}

func (h *SystemHandler) collect(ctx context.Context) healthReport {
	r := healthReport{
		Status:    "ok",
		Uptime:    formatDuration(time.Since(h.startTime)),
		Checks:    make(map[string]string, len(h.checks)),
		GoVersion: runtime.Version(),
	}

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Warn().Err(err).Str("check", name).Msg("Health check failed")
			r.Checks[name] = err.Error()
			r.Status = "degraded"
			continue
		}
		r.Checks[name] = "ok"
	}

	if h.sessions != nil {
		r.ActiveSessions = h.sessions.ActiveSessions()
	}

	// ── Go Runtime ──
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	r.Goroutines = runtime.NumGoroutine()
	r.HeapAlloc = ms.HeapAlloc

	// ── Worker Queues (pipelined LLEN) ──
	if h.rdb != nil {
		queues := config.WorkerKey.Queues()
		pipe := h.rdb.Pipeline()
		pending := make([]*redis.IntCmd, len(queues))
		dead := make([]*redis.IntCmd, len(queues))
		for i, q := range queues {
			pending[i] = pipe.LLen(ctx, q)
			dead[i] = pipe.LLen(ctx, config.WorkerKey.DeadLetter(q))
		}
		if _, err := pipe.Exec(ctx); err == nil {
			r.Queues = make(map[string]queueDepth, len(queues))
			for i, q := range queues {
				r.Queues[q] = queueDepth{Pending: pending[i].Val(), Dead: dead[i].Val()}
			}
		}
	}

	return r
}

// ---------- Helpers ----------

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
