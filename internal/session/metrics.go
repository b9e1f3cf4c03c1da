package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	acquireCached    = "cached"
	acquireRefreshed = "refreshed"
	acquireFailed    = "failed"

	refreshOK            = "ok"
	refreshRejected      = "rejected"
	refreshUnavailable   = "unavailable"
	refreshMissingTicket = "missing_ticket"
	refreshSettled       = "settled_elsewhere"
)

// metrics — счётчики менеджера сессии. При nil Registerer метрики
// создаются, но нигде не регистрируются (удобно для тестов).
type metrics struct {
	acquire      *prometheus.CounterVec
	refresh      *prometheus.CounterVec
	joined       prometheus.Counter
	terminations *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)

	return &metrics{
		acquire: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "session",
			Name:      "acquire_total",
			Help:      "Credential acquisitions by result (cached, refreshed, failed).",
		}, []string{"result"}),
		refresh: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "session",
			Name:      "refresh_total",
			Help:      "Refresh flights by outcome.",
		}, []string{"outcome"}),
		joined: f.NewCounter(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "session",
			Name:      "refresh_joined_total",
			Help:      "Acquire calls that received the result of a shared refresh flight.",
		}),
		terminations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "session",
			Name:      "terminations_total",
			Help:      "Session terminations by reason.",
		}, []string{"reason"}),
	}
}

func (m *metrics) acquired(result string)   { m.acquire.WithLabelValues(result).Inc() }
func (m *metrics) refreshed(outcome string) { m.refresh.WithLabelValues(outcome).Inc() }
func (m *metrics) joinedFlight()            { m.joined.Inc() }
func (m *metrics) terminated(reason string) { m.terminations.WithLabelValues(reason).Inc() }
