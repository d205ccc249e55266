// Package metrics provides Prometheus metrics for the boot control plane.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "bootplane"
)

// Operation names for the selection and attachment core.
const (
	OpBootDiskInfo  = "get_boot_disk_info"
	OpMapDiskInfo   = "get_map_disk_info"
	OpAttachUsable  = "attach_all_usable_logical_units"
	OpDestroyTarget = "destroy_target"
	OpRevert        = "revert"
	OpRecreate      = "recreate"
	OpDump          = "dump"
	OpRestore       = "restore"
)

var (
	bootOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of core operations by operation type and status",
		},
		[]string{"operation", "status"},
	)

	bootOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of core operations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		[]string{"operation"},
	)

	commandExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_executions_total",
			Help:      "Total number of external tool executions by tool and status",
		},
		[]string{"tool", "status"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of API requests by method and response code",
		},
		[]string{"method", "code"},
	)

	attachedLogicalUnits = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "attached_logical_units",
			Help:      "Number of logical units currently attached per target",
		},
		[]string{"target"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information (value is always 1)",
		},
		[]string{"version", "git_commit", "build_date"},
	)
)

// RecordOperation records the outcome of a core operation.
func RecordOperation(operation, status string, duration time.Duration) {
	bootOperationsTotal.WithLabelValues(operation, status).Inc()
	bootOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCommand records an external tool execution.
func RecordCommand(tool, status string) {
	commandExecutionsTotal.WithLabelValues(tool, status).Inc()
}

// RecordHTTPRequest records an API request.
func RecordHTTPRequest(method, code string) {
	httpRequestsTotal.WithLabelValues(method, code).Inc()
}

// SetAttachedLogicalUnits sets the attached LUN count for a target.
func SetAttachedLogicalUnits(target string, count int) {
	attachedLogicalUnits.WithLabelValues(target).Set(float64(count))
}

// DeleteAttachedLogicalUnits removes the gauge for a destroyed target.
func DeleteAttachedLogicalUnits(target string) {
	attachedLogicalUnits.DeleteLabelValues(target)
}

// SetVersionInfo sets the build information gauge.
func SetVersionInfo(version, gitCommit, buildDate string) {
	buildInfo.WithLabelValues(version, gitCommit, buildDate).Set(1)
}

// OperationTimer helps time core operations and record metrics automatically.
type OperationTimer struct {
	start     time.Time
	operation string
}

// NewOperationTimer creates a new timer for a core operation.
func NewOperationTimer(operation string) *OperationTimer {
	return &OperationTimer{
		start:     time.Now(),
		operation: operation,
	}
}

// ObserveSuccess records a successful operation.
func (t *OperationTimer) ObserveSuccess() {
	RecordOperation(t.operation, "success", time.Since(t.start))
}

// ObserveError records a failed operation.
func (t *OperationTimer) ObserveError() {
	RecordOperation(t.operation, "error", time.Since(t.start))
}
