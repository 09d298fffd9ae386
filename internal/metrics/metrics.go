package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "rangeview"

const (
	NameSessions        = "sessions_total"
	NameDiscoveryErrors = "discovery_errors_total"
	NameRangeFetches    = "range_fetches_total"
	NameRangeBytes      = "range_bytes_total"
	NameRangeCacheHits  = "range_cache_hits_total"
	NameStaleDiscarded  = "stale_results_discarded_total"
	NameRenders         = "renders_total"
	NamePanics          = "recovered_panics_total"
	LabelStatus         = "status"
	LabelKind           = "kind"
	StatusSuccess       = "success"
	StatusFailure       = "failure"
	KindHead            = "head"
	KindRange           = "range"
	KindResolve         = "resolve"
)

var Sessions = promauto.NewCounter(
	prometheus.CounterOpts{
		Name:      NameSessions,
		Help:      "Document sessions created after a successful size discovery",
		Namespace: Namespace,
	},
)

var DiscoveryErrors = promauto.NewCounter(
	prometheus.CounterOpts{
		Name:      NameDiscoveryErrors,
		Help:      "Size discoveries that failed",
		Namespace: Namespace,
	},
)

var RangeFetches = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name:      NameRangeFetches,
		Help:      "Range fetches by outcome",
		Namespace: Namespace,
	},
	[]string{LabelStatus},
)

var RangeBytes = promauto.NewCounter(
	prometheus.CounterOpts{
		Name:      NameRangeBytes,
		Help:      "Bytes received by range fetches of live sessions",
		Namespace: Namespace,
	},
)

var RangeCacheHits = promauto.NewCounter(
	prometheus.CounterOpts{
		Name:      NameRangeCacheHits,
		Help:      "Range requests answered from the session cache",
		Namespace: Namespace,
	},
)

var StaleDiscarded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name:      NameStaleDiscarded,
		Help:      "Asynchronous results discarded because their session was replaced",
		Namespace: Namespace,
	},
	[]string{LabelKind},
)

var Panics = promauto.NewCounter(
	prometheus.CounterOpts{
		Name:      NamePanics,
		Help:      "Panics recovered from fetcher and engine calls",
		Namespace: Namespace,
	},
)

var Renders = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name:      NameRenders,
		Help:      "Page render passes by outcome",
		Namespace: Namespace,
	},
	[]string{LabelStatus},
)
