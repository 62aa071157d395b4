package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "brain",
	Subsystem: "server",
	Name:      "requests_total",
	Help:      "Classification requests handled, by outcome.",
}, []string{"outcome"})
