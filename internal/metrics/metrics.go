// Package metrics exposes prometheus collectors fed from the farm's event
// stream.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"farmLedger/internal/model"
)

var (
	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farmledger",
		Name:      "actions_total",
		Help:      "User actions processed, by kind and pool.",
	}, []string{"kind", "pool"})

	lockupsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "farmledger",
		Name:      "reward_lockups_total",
		Help:      "Settlements that deferred reward into a lockup.",
	})

	commissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "farmledger",
		Name:      "referral_commissions_total",
		Help:      "Referral commissions paid out.",
	})

	emissionRateChanges = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "farmledger",
		Name:      "emission_rate_changes_total",
		Help:      "Global emission rate updates.",
	})
)

// Sink is a farm.EventSink that updates prometheus counters. It can wrap
// another sink so events still reach the audit log.
type Sink struct {
	next interface{ Emit(model.Event) }
}

func NewSink(next interface{ Emit(model.Event) }) *Sink {
	return &Sink{next: next}
}

func (s *Sink) Emit(event model.Event) {
	switch event.Kind {
	case model.EventDeposit, model.EventWithdraw, model.EventEmergencyWithdraw:
		actionsTotal.WithLabelValues(event.Kind, strconv.Itoa(event.PoolID)).Inc()
	case model.EventRewardLockedUp:
		lockupsTotal.Inc()
	case model.EventReferralCommission:
		commissionsTotal.Inc()
	case model.EventEmissionRateChange:
		emissionRateChanges.Inc()
	}
	if s.next != nil {
		s.next.Emit(event)
	}
}
