package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(ledgerValidationsTotal) }

var ledgerValidationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ledger_validations_total",
		Help: "Transaction validations against the ledger indexer.",
	},
	[]string{"result", "reason"}, // result 'valid'|'invalid'
)

func IncLedgerValidation(valid bool, reason string) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	ledgerValidationsTotal.WithLabelValues(result, norm(reason)).Inc()
}
