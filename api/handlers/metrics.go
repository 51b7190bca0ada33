package handlers

import (
	"net/http"
	"strconv"

	"github.com/linesmerrill/member-portal/api"
)

// formatRouteMetrics converts duration fields to milliseconds for JSON serialization
func formatRouteMetrics(routes []api.RouteMetrics) []map[string]interface{} {
	result := make([]map[string]interface{}, len(routes))
	for i, route := range routes {
		result[i] = map[string]interface{}{
			"method":      route.Method,
			"path":        route.Path,
			"count":       route.Count,
			"errorCount":  route.ErrorCount,
			"avgTime":     route.AvgTime.Milliseconds(),
			"minTime":     route.MinTime.Milliseconds(),
			"maxTime":     route.MaxTime.Milliseconds(),
			"lastRequest": route.LastRequest,
		}
	}
	return result
}

// MetricsHandler serves HTTP route and real-time event metrics
type MetricsHandler struct {
	Metrics *api.MetricsCollector
}

// GetMetrics returns the summary, including socket event counters, and the
// slowest routes
func (m MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	response := map[string]interface{}{
		"summary": m.Metrics.GetSummary(),
		"slowest": formatRouteMetrics(m.Metrics.GetSlowestRoutes(limit)),
	}
	api.WriteJSON(w, http.StatusOK, response)
}
