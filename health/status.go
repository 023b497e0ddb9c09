// Package health tracks per-component health for the edge cache and exposes
// an aggregate view on the health endpoint.
package health

import "time"

// Level is the health level of a component.
type Level string

const (
	// Healthy means the component is fully operational.
	Healthy Level = "healthy"
	// Degraded means the component works with reduced capability
	// (e.g. serving from cache while the origin is unreachable).
	Degraded Level = "degraded"
	// Unhealthy means the component is not operational.
	Unhealthy Level = "unhealthy"
)

// Status describes the health of one named component at a point in time.
type Status struct {
	Component string    `json:"component"`
	Level     Level     `json:"level"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewHealthy builds a healthy status.
func NewHealthy(component, message string) Status {
	return Status{Component: component, Level: Healthy, Message: message, Timestamp: time.Now()}
}

// NewDegraded builds a degraded status.
func NewDegraded(component, message string) Status {
	return Status{Component: component, Level: Degraded, Message: message, Timestamp: time.Now()}
}

// NewUnhealthy builds an unhealthy status.
func NewUnhealthy(component, message string) Status {
	return Status{Component: component, Level: Unhealthy, Message: message, Timestamp: time.Now()}
}
