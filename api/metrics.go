package api

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// RequestTrace tracks timing for a single request
type RequestTrace struct {
	RequestID     string        `json:"requestId"`
	Method        string        `json:"method"`
	Path          string        `json:"path"`
	Status        int           `json:"status"`
	StartTime     time.Time     `json:"startTime"`
	TotalDuration time.Duration `json:"totalDuration"`
}

// RouteMetrics aggregates metrics for a specific route
type RouteMetrics struct {
	Method      string        `json:"method"`
	Path        string        `json:"path"`
	Count       int64         `json:"count"`
	ErrorCount  int64         `json:"errorCount"`
	TotalTime   time.Duration `json:"totalTime"`
	AvgTime     time.Duration `json:"avgTime"`
	MinTime     time.Duration `json:"minTime"`
	MaxTime     time.Duration `json:"maxTime"`
	LastRequest time.Time     `json:"lastRequest"`
}

// MetricsCollector collects and aggregates request metrics and real-time
// event counts
type MetricsCollector struct {
	mu            sync.RWMutex
	routeMetrics  map[string]*RouteMetrics
	events        map[string]map[string]int64
	started       time.Time
	totalRequests int64
	totalErrors   int64
	traceChan     chan RequestTrace
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewMetricsCollector starts a collector. Traces are queued on a buffered
// channel of size buffer and dropped when it is full.
func NewMetricsCollector(buffer int) *MetricsCollector {
	mc := &MetricsCollector{
		routeMetrics: make(map[string]*RouteMetrics),
		events:       make(map[string]map[string]int64),
		started:      time.Now(),
		traceChan:    make(chan RequestTrace, buffer),
		stopChan:     make(chan struct{}),
	}
	go mc.processTraces()
	return mc
}

// Stop ends the background trace processor
func (mc *MetricsCollector) Stop() {
	mc.stopOnce.Do(func() { close(mc.stopChan) })
}

// RecordTrace queues a request trace without blocking
func (mc *MetricsCollector) RecordTrace(trace RequestTrace) {
	select {
	case mc.traceChan <- trace:
	default:
	}
}

func (mc *MetricsCollector) processTraces() {
	for {
		select {
		case trace := <-mc.traceChan:
			mc.processTrace(trace)
		case <-mc.stopChan:
			return
		}
	}
}

func (mc *MetricsCollector) processTrace(trace RequestTrace) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	path := normalizeRoutePath(trace.Path)
	routeKey := trace.Method + " " + path

	metrics, exists := mc.routeMetrics[routeKey]
	if !exists {
		metrics = &RouteMetrics{
			Method:  trace.Method,
			Path:    path,
			MinTime: trace.TotalDuration,
		}
		mc.routeMetrics[routeKey] = metrics
	}

	metrics.Count++
	metrics.TotalTime += trace.TotalDuration
	metrics.AvgTime = metrics.TotalTime / time.Duration(metrics.Count)
	metrics.LastRequest = trace.StartTime

	if trace.TotalDuration < metrics.MinTime {
		metrics.MinTime = trace.TotalDuration
	}
	if trace.TotalDuration > metrics.MaxTime {
		metrics.MaxTime = trace.TotalDuration
	}

	if trace.Status >= 400 {
		metrics.ErrorCount++
		mc.totalErrors++
	}
	mc.totalRequests++
}

// ObserveEvent counts a real-time event on a namespace
func (mc *MetricsCollector) ObserveEvent(namespace, event string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	byEvent, ok := mc.events[namespace]
	if !ok {
		byEvent = make(map[string]int64)
		mc.events[namespace] = byEvent
	}
	byEvent[event]++
}

// EventCount returns how many times event was observed on namespace
func (mc *MetricsCollector) EventCount(namespace, event string) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.events[namespace][event]
}

// GetRouteMetrics returns a copy of the aggregated metrics for all routes
func (mc *MetricsCollector) GetRouteMetrics() map[string]*RouteMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	result := make(map[string]*RouteMetrics, len(mc.routeMetrics))
	for k, v := range mc.routeMetrics {
		metrics := *v
		result[k] = &metrics
	}
	return result
}

// GetSlowestRoutes returns up to limit routes ordered by average time
func (mc *MetricsCollector) GetSlowestRoutes(limit int) []RouteMetrics {
	routes := make([]RouteMetrics, 0, limit)
	for _, m := range mc.GetRouteMetrics() {
		routes = append(routes, *m)
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].AvgTime == routes[j].AvgTime {
			return routes[i].Method+routes[i].Path < routes[j].Method+routes[j].Path
		}
		return routes[i].AvgTime > routes[j].AvgTime
	})
	if limit >= 0 && len(routes) > limit {
		routes = routes[:limit]
	}
	return routes
}

// GetSummary returns overall summary metrics
func (mc *MetricsCollector) GetSummary() map[string]interface{} {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	var errorRate float64
	if mc.totalRequests > 0 {
		errorRate = float64(mc.totalErrors) / float64(mc.totalRequests)
	}

	events := make(map[string]map[string]int64, len(mc.events))
	for ns, byEvent := range mc.events {
		c := make(map[string]int64, len(byEvent))
		for ev, n := range byEvent {
			c[ev] = n
		}
		events[ns] = c
	}

	return map[string]interface{}{
		"totalRequests": mc.totalRequests,
		"totalErrors":   mc.totalErrors,
		"errorRate":     errorRate,
		"routeCount":    len(mc.routeMetrics),
		"uptime":        time.Since(mc.started).String(),
		"events":        events,
	}
}

var (
	objectIDPattern    = regexp.MustCompile(`/[0-9a-fA-F]{24}(/|$)`)
	uuidPattern        = regexp.MustCompile(`/[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}(/|$)`)
	longNumericPattern = regexp.MustCompile(`/\d{10,}(/|$)`)
)

// normalizeRoutePath replaces id-like path segments with {id} so requests
// for the same route group together
func normalizeRoutePath(path string) string {
	path = objectIDPattern.ReplaceAllString(path, "/{id}$1")
	path = uuidPattern.ReplaceAllString(path, "/{id}$1")
	path = longNumericPattern.ReplaceAllString(path, "/{id}$1")
	path = strings.ReplaceAll(path, "//", "/")

	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}
