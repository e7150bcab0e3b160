package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"contratandoplanos/internal/auth"
	applog "contratandoplanos/internal/log"
	"contratandoplanos/internal/objectstore"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}
	writeJSON(w, http.StatusOK, health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if len(s.pages) == 0 || s.partials == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.store.Ping(ctx); err != nil {
		checks["database"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
		fmt.Fprintf(w, "%s %v\n\n", name, value)
	}

	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_client_errors_total", "counter", "Responses with a 4xx status", traceMetrics.ClientErrors)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("http_response_time_avg_ms", "gauge", "Average response time in milliseconds", traceMetrics.AverageResponseTime/1000)
	metric("leads_created_total", "counter", "Quote requests captured", s.appMetrics.leadsCreated.Load())
	metric("proposals_submitted_total", "counter", "Proposals submitted by brokers", s.appMetrics.proposalsSubmitted.Load())
	metric("catalog_loads_total", "counter", "Product catalog reads that missed the cache", s.appMetrics.catalogLoads.Load())
	metric("template_errors_total", "counter", "Failed template renders", s.appMetrics.renderErrors.Load())
	metric("rate_limit_hits_total", "counter", "Total rate limit hits", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("blocked_requests_total", "counter", "Requests refused by the detector", securityMetrics.BlockedRequests)
	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n# TYPE uptime_seconds gauge\nuptime_seconds %.0f\n",
		time.Since(s.appMetrics.uptime).Seconds())
}

// handleFile streams a stored object. Admins read everything; a broker reads
// only their own photo and the documents of their own proposals.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	p, _ := auth.PrincipalFrom(r.Context())

	if p.Role == auth.RoleBroker {
		allowed, err := s.brokerOwnsObject(r.Context(), p.ID, key)
		if err != nil {
			s.serverError(w, r, "file ownership", err)
			return
		}
		if !allowed {
			s.handleNotFound(w, r)
			return
		}
	}

	body, contentType, err := s.objects.Get(r.Context(), key)
	if errors.Is(err, objectstore.ErrNotFound) {
		s.handleNotFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, "read file", err)
		return
	}
	defer body.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if strings.HasPrefix(key, "propostas/") {
		w.Header().Set("Content-Disposition", "attachment")
	}
	if _, err := io.Copy(w, body); err != nil {
		s.logger.WarnContext(r.Context(), "File stream interrupted",
			applog.FieldObjectKey, key,
			applog.FieldError, err)
	}
}

func (s *Server) brokerOwnsObject(ctx context.Context, brokerID, key string) (bool, error) {
	if strings.HasPrefix(key, "corretores/"+brokerID+"/") {
		return true, nil
	}
	docs, err := s.store.ListBrokerDocuments(ctx, brokerID)
	if err != nil {
		return false, err
	}
	for _, d := range docs {
		if d.Key == key {
			return true, nil
		}
	}
	return false, nil
}
