package models

// HealthCheckResponse is the body returned by GET /health
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}
