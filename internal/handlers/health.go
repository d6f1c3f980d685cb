package handlers

import (
	"net/http"
	"sort"
	"time"

	domain "github.com/peoplehub/hr-api/internal/domain"
	"github.com/peoplehub/hr-api/internal/services"
)

// HealthHandlers serves liveness and readiness probes. Healthz always answers
// from process state; Readyz consults the system service for dependency checks.
type HealthHandlers struct {
	system services.SystemService
	build  services.BuildInfo
	clock  func() time.Time
}

// HealthOption customises health handler construction.
type HealthOption func(*HealthHandlers)

// WithHealthSystemService wires the system service used for readiness checks.
func WithHealthSystemService(svc services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = svc
	}
}

// WithHealthBuildInfo attaches build metadata reported by both probes.
func WithHealthBuildInfo(info services.BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = info
	}
}

// WithHealthClock overrides the time source, primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs health handlers with the provided options.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.clock()
	}
	return h
}

type healthCheckPayload struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	Latency   string `json:"latency,omitempty"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

type healthResponse struct {
	Status      string                        `json:"status"`
	Version     string                        `json:"version,omitempty"`
	CommitSHA   string                        `json:"commitSha,omitempty"`
	Environment string                        `json:"environment,omitempty"`
	Uptime      string                        `json:"uptime,omitempty"`
	Timestamp   string                        `json:"timestamp,omitempty"`
	Checks      map[string]healthCheckPayload `json:"checks,omitempty"`
	Details     []string                      `json:"details,omitempty"`
}

// Healthz reports process liveness without touching any dependency.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	writeJSONResponse(w, http.StatusOK, healthResponse{
		Status:      domain.HealthStatusOK,
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Uptime:      now.Sub(h.build.StartedAt).String(),
		Timestamp:   formatTime(now),
	})
}

// Readyz reports whether the service can serve traffic. Any dependency check
// that is not healthy turns the response into a 503.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()

	if h.system == nil {
		writeJSONResponse(w, http.StatusOK, healthResponse{
			Status:      domain.HealthStatusOK,
			Version:     h.build.Version,
			CommitSHA:   h.build.CommitSHA,
			Environment: h.build.Environment,
			Uptime:      now.Sub(h.build.StartedAt).String(),
			Timestamp:   formatTime(now),
		})
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, healthResponse{
			Status:    domain.HealthStatusError,
			Timestamp: formatTime(now),
			Details:   []string{err.Error()},
		})
		return
	}

	response := healthResponse{
		Status:      report.Status,
		Version:     report.Version,
		CommitSHA:   report.CommitSHA,
		Environment: report.Environment,
		Uptime:      report.Uptime.String(),
		Timestamp:   formatTime(report.GeneratedAt),
	}

	if len(report.Checks) > 0 {
		response.Checks = make(map[string]healthCheckPayload, len(report.Checks))
		for name, check := range report.Checks {
			payload := healthCheckPayload{
				Status:    check.Status,
				Detail:    check.Detail,
				Error:     check.Error,
				CheckedAt: formatTime(check.CheckedAt),
			}
			if check.Latency > 0 {
				payload.Latency = check.Latency.String()
			}
			response.Checks[name] = payload
			if check.Status != domain.HealthStatusOK && check.Status != "" {
				detail := check.Error
				if detail == "" {
					detail = check.Detail
				}
				if detail == "" {
					detail = check.Status
				}
				response.Details = append(response.Details, name+": "+detail)
			}
		}
		sort.Strings(response.Details)
	}

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, response)
}
