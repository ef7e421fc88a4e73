package session

import (
	"github.com/bytedungeon/dungeon-server-go/internal/game/rules"
	"github.com/prometheus/client_golang/prometheus"
)

var activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "dungeon_active_sessions",
	Help: "Number of live game sessions",
})

// RequestOutcomes counts executed, failed and dropped game requests.
var RequestOutcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dungeon_game_requests_total",
		Help: "Total number of game requests by action and outcome",
	},
	[]string{"action", "outcome"},
)

// RegisterMetrics registers session metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(activeSessions)
	reg.MustRegister(RequestOutcomes)
}

func recordRequestOutcome(evt rules.Event) {
	var outcome string
	switch evt.Type {
	case rules.EventRequestExecuted:
		outcome = "executed"
	case rules.EventRequestFailed:
		outcome = "failed"
	case rules.EventRequestDropped:
		outcome = "dropped"
	default:
		return
	}
	action := evt.Metadata["action"]
	RequestOutcomes.WithLabelValues(action, outcome).Inc()
}
