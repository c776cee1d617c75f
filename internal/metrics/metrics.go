// Package metrics exposes the proxy's Prometheus instrumentation,
// grounded on the teacher's internal/wol/metrics.go pattern of
// constructing collectors directly and registering them against an
// explicit registry rather than a package-global default.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Set holds every collector the proxy updates during its run loop.
type Set struct {
	FramesReceived prometheus.Counter
	FramesSent     prometheus.Counter
	FramesDropped  *prometheus.CounterVec
	ScriptsRun     prometheus.Counter
	ScriptsFailed  prometheus.Counter
	Restarts       prometheus.Counter
	Signals        *prometheus.CounterVec
}

// New constructs a Set and registers every collector with reg.
func New(reg prometheus.Registerer) *Set {
	s := &Set{
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "peapod_frames_received_total",
			Help: "EAPOL frames successfully captured on any interface.",
		}),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "peapod_frames_sent_total",
			Help: "EAPOL frames successfully written to a peer interface.",
		}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "peapod_frames_dropped_total",
			Help: "Frames dropped by a filter, labeled by the phase that dropped them.",
		}, []string{"phase"}),
		ScriptsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "peapod_scripts_run_total",
			Help: "Ingress or egress scripts executed.",
		}),
		ScriptsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "peapod_scripts_failed_total",
			Help: "Scripts whose environment or standard streams could not be prepared; a script's exit status is not counted here.",
		}),
		Restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "peapod_restarts_total",
			Help: "Times the proxy loop tore down and rebuilt its multiplexer after an error.",
		}),
		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "peapod_signals_total",
			Help: "Signals observed by the proxy loop, labeled by signal name.",
		}, []string{"signal"}),
	}

	reg.MustRegister(
		s.FramesReceived,
		s.FramesSent,
		s.FramesDropped,
		s.ScriptsRun,
		s.ScriptsFailed,
		s.Restarts,
		s.Signals,
	)
	return s
}
