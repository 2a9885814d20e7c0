package command

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var commandHandleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "warden_command_duration_sec",
	Help: "Total duration of command dispatch including the pipeline",
}, []string{"command"})

var commandHandleCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_command_handled",
	Help: "Number of command invocations by outcome",
}, []string{"command", "outcome"})

var commandPanicCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_command_panics",
	Help: "Number of command handlers that panicked",
}, []string{"command"})
