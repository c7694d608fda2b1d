// Package health provides system health monitoring and status reporting.
package health

import "github.com/vietddude/textchain/internal/infra/rpc/provider"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ComponentHealth is the status of one dependency (database, redis) or chain.
type ComponentHealth struct {
	Name      string                           `json:"name"`
	Status    SystemStatus                     `json:"status"`
	Error     string                           `json:"error,omitempty"`
	Providers map[string]provider.HealthStatus `json:"providers,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus               `json:"system_status"`
	Components   map[string]ComponentHealth `json:"components"`
}

// Overall returns the worst status in the report.
func Overall(components map[string]ComponentHealth) SystemStatus {
	status := StatusHealthy
	for _, c := range components {
		if c.Status == StatusCritical {
			return StatusCritical
		}
		if c.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	return status
}
