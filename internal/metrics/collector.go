package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Freeeeeet/video_access/internal/model"
)

type Collector struct {
	decisions      *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	redemptions    *prometheus.CounterVec
	codeCollisions prometheus.Counter
	digestsSent    prometheus.Counter
}

// NewCollector registers access metrics in reg. nil uses the default registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "video_access_decisions_total",
			Help: "Access decisions by result and reason",
		}, []string{"result", "reason"}),

		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "video_access_transitions_total",
			Help: "Committed access ledger transitions by action",
		}, []string{"action"}),

		redemptions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "video_access_code_redemptions_total",
			Help: "Access code redemption attempts by outcome",
		}, []string{"outcome"}),

		codeCollisions: factory.NewCounter(prometheus.CounterOpts{
			Name: "video_access_code_collisions_total",
			Help: "Generated access codes rejected as already taken",
		}),

		digestsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "video_access_pending_digests_total",
			Help: "Pending request digests delivered to creators",
		}),
	}
}

func (c *Collector) Decision(allowed bool, reason string) {
	c.decisions.WithLabelValues(strconv.FormatBool(allowed), reason).Inc()
}

func (c *Collector) Transition(action model.AccessAction) {
	c.transitions.WithLabelValues(string(action)).Inc()
}

func (c *Collector) Redemption(outcome string) {
	c.redemptions.WithLabelValues(outcome).Inc()
}

func (c *Collector) CodeCollision() {
	c.codeCollisions.Inc()
}

func (c *Collector) DigestsSent(n int) {
	c.digestsSent.Add(float64(n))
}
