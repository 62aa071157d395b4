package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	filesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brain",
		Subsystem: "pipeline",
		Name:      "files_total",
		Help:      "Files classified, by final category.",
	}, []string{"category"})

	fileErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "brain",
		Subsystem: "pipeline",
		Name:      "file_errors_total",
		Help:      "Files whose classification failed and degraded to Misc.",
	})

	escalationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "brain",
		Subsystem: "pipeline",
		Name:      "escalations_total",
		Help:      "Batch escalation calls to the external classifier.",
	})

	escalationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "brain",
		Subsystem: "pipeline",
		Name:      "escalation_failures_total",
		Help:      "Escalation calls that failed and yielded no overrides.",
	})

	overridesAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "brain",
		Subsystem: "pipeline",
		Name:      "overrides_applied_total",
		Help:      "Escalation overrides applied to Misc entries.",
	})
)
