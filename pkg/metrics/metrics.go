package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_validations_total",
			Help: "Number of order validation attempts",
		},
		[]string{"outcome"}, // success|failure
	)
	ValidationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_validation_errors_total",
			Help: "Number of failed validations by error kind",
		},
		[]string{"error_kind"},
	)
	ConnectorProbes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_connector_probes_total",
			Help: "Number of connectivity self-tests",
		},
		[]string{"result"}, // ok|failed
	)
)

func MustRegister() {
	prometheus.MustRegister(ValidationsTotal, ValidationErrors, ConnectorProbes)
}
