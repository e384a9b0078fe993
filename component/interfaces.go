package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string         `json:"name"`
	Status  HealthStatus   `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Component is a lifecycle-managed part of a service.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start launches the component. It must not block for the component's lifetime.
	Start(ctx context.Context) error

	// Stop shuts the component down and waits for it, bounded by ctx.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) Health
}
