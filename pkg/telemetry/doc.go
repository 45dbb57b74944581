// Package telemetry exports engine activity to Prometheus and
// OpenTelemetry.
//
// Both instrumentations are fed by the engine's hook registry and can be
// enabled and removed independently at runtime:
//
//	stopMetrics := telemetry.EnableMetrics()
//	stopTracing := telemetry.EnableTracing()
//	defer stopMetrics()
//	defer stopTracing()
package telemetry
