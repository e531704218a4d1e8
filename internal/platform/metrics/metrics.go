// Package metrics holds the process-wide Prometheus collectors for the ledger core.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mybank-ledger/internal/domain/shared"
)

var (
	transfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transfers_total",
		Help: "Transfers by outcome",
	}, []string{"outcome"})

	tokenOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_token_operations_total",
		Help: "Cash token issue and redeem operations by outcome",
	}, []string{"operation", "outcome"})

	idempotentReplaysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_idempotent_replays_total",
		Help: "Requests answered from a stored idempotency outcome",
	}, []string{"scope"})

	depositsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_deposits_applied_total",
		Help: "Verified gateway deposits by outcome",
	}, []string{"outcome"})

	mutationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_mutation_duration_seconds",
		Help:    "Latency of balance-changing units of work",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"kind"})
)

// Outcome is "ok" for nil and the lowercased error class otherwise.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(string(shared.ClassOf(err)))
}

func ObserveTransfer(err error) {
	transfersTotal.WithLabelValues(Outcome(err)).Inc()
}

func ObserveTokenOperation(operation string, err error) {
	tokenOperationsTotal.WithLabelValues(operation, Outcome(err)).Inc()
}

func ObserveReplay(scope string) {
	idempotentReplaysTotal.WithLabelValues(scope).Inc()
}

// ObserveDeposit records a deposit outcome; duplicates are counted separately.
func ObserveDeposit(outcome string) {
	depositsAppliedTotal.WithLabelValues(outcome).Inc()
}

// ObserveMutation records the duration of a unit of work started at start.
func ObserveMutation(kind string, start time.Time) {
	mutationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
