package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(planCacheLookupsTotal) }

var planCacheLookupsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "plan_cache_lookups_total",
		Help: "Plan catalog lookups served by the Redis cache.",
	},
	[]string{"lookup", "result"}, // lookup: period|list; result: hit|miss|error
)

// IncPlanCacheLookup counts one cache probe. An error result also counts as a
// miss for the caller since the store is read instead.
func IncPlanCacheLookup(lookup, result string) {
	planCacheLookupsTotal.WithLabelValues(norm(lookup), norm(result)).Inc()
}
