package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	CyclesTotal       prometheus.Counter
	CycleDuration     prometheus.Histogram
	MailsFetched      prometheus.Counter
	ParseResults      *prometheus.CounterVec
	Decisions         *prometheus.CounterVec
	StoreDegraded     prometheus.Counter
	NarratorFallbacks prometheus.Counter
	TelegramSends     *prometheus.CounterVec
	SchedulerRunning  prometheus.Gauge
	LastCycleTime     prometheus.Gauge
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		CyclesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "soc_alert_relay_cycles_total",
			Help: "Total number of processing cycles",
		}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "soc_alert_relay_cycle_duration_seconds",
			Help:    "Time spent running one processing cycle",
			Buckets: prometheus.DefBuckets,
		}),
		MailsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "soc_alert_relay_mails_fetched_total",
			Help: "Total number of inbound mails fetched",
		}),
		ParseResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "soc_alert_relay_parse_results_total",
			Help: "Parse results by validity",
		}, []string{"validity"}),
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "soc_alert_relay_decisions_total",
			Help: "Dedup decisions by outcome",
		}, []string{"decision"}),
		StoreDegraded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "soc_alert_relay_store_degraded_total",
			Help: "Decisions taken in degraded mode because the dedup store failed",
		}),
		NarratorFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "soc_alert_relay_narrator_fallbacks_total",
			Help: "Notifications that fell back to the plain summary after a narration failure",
		}),
		TelegramSends: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "soc_alert_relay_telegram_sends_total",
			Help: "Telegram send attempts by status",
		}, []string{"status"}),
		SchedulerRunning: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "soc_alert_relay_scheduler_running",
			Help: "Whether the scheduler is currently running (1) or stopped (0)",
		}),
		LastCycleTime: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "soc_alert_relay_last_cycle_timestamp_seconds",
			Help: "Unix timestamp of the last completed processing cycle",
		}),
	}
}
