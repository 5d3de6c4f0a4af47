// Package telemetry provides the OpenTelemetry/Prometheus metrics provider
// and the eventbus Observer that feeds it.
package telemetry
