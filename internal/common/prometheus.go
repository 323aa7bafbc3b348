package common

import "github.com/prometheus/client_golang/prometheus"

const (
	HTTPRequestTotal           = "http_requests_total"
	HTTPRequestDurationSeconds = "http_request_duration_seconds"
	PayoutFailure              = "payout_failure"
	PayoutSuccess              = "payout_success"
	BoxesOpened                = "boxes_opened"
	RewardsDistributed         = "rewards_distributed_micro_usdc"
)

var (
	PromCounters = map[string]*prometheus.CounterVec{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: HTTPRequestTotal,
			Help: "Count of all HTTP requests",
		}, []string{"path", "status_code"}),
		PayoutFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: PayoutFailure,
			Help: "Count of all payout failures",
		}, []string{"reason"}),
		PayoutSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: PayoutSuccess,
			Help: "Count of confirmed payouts",
		}, []string{"kind"}),
		BoxesOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: BoxesOpened,
			Help: "Count of opened mystery boxes",
		}, []string{"tier"}),
		RewardsDistributed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: RewardsDistributed,
			Help: "Sum of prizes won, in micro USDC",
		}, []string{}),
	}

	PromHistograms = map[string]*prometheus.HistogramVec{
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: HTTPRequestDurationSeconds,
			Help: "Duration of all HTTP requests",
		}, []string{"path", "status_code"}),
	}
)

func PromCollectors() []prometheus.Collector {
	collectors := []prometheus.Collector{}
	for _, counter := range PromCounters {
		collectors = append(collectors, counter)
	}

	for _, histogram := range PromHistograms {
		collectors = append(collectors, histogram)
	}

	return collectors
}
