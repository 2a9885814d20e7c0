package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "warden_event_duration_sec",
	Help: "Total duration of defense event processing",
}, []string{"type"})

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_event_processed",
	Help: "Number of events processed",
}, []string{"type"})

var eventErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_event_errors",
	Help: "Number of events which failed processing",
}, []string{"type"})

var violationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_violations",
	Help: "Number of positive detections acted on",
}, []string{"module", "severity"})

var actionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_actions",
	Help: "Number of moderation actions applied",
}, []string{"action"})

var detectorErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_detector_errors",
	Help: "Number of detection module failures (treated as no detection)",
}, []string{"module"})

var transportErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_transport_errors",
	Help: "Number of failed transport actions",
}, []string{"op"})
