// Package component defines the lifecycle contract shared by long-running
// parts of a gostream service, such as a pipeline runner or a telemetry
// exporter.
//
// Components are registered with a Registry, started in registration
// order and stopped in reverse order. Health reports are aggregated by
// Registry.HealthAll.
package component
