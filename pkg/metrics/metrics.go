package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var HistogramBuckets = []float64{
	// --- Fast responses (0 - 500ms) ---
	25, 50, 75, 100, 150, 200, 300, 400, 500,

	// --- Medium responses around 700ms (500ms - 2s) ---
	750, 1000, 1250, 1500, 1750, 2000,

	// --- Slow responses (2s - 15s) ---
	2500, 3000, 4000, 5000, 7500, 10000, 15000,

	// --- Extended range: covers 60000ms+ (15s - 75s) ---
	20000,  // 20s
	30000,  // 30s
	45000,  // 45s
	60000,  // 60s
	75000,  // 75s
	90000,  // 90s
	120000, // 120s
}

// Metric is a definition for the name, description, type, ID, and
// prometheus.Collector type (i.e. CounterVec, Summary, etc) of each metric
type Metric struct {
	MetricCollector prometheus.Collector
	ID              string
	Name            string
	Description     string
	Type            string
	Args            []string
}

// NewMetric builds the prometheus.Collector named by m.Type. Only the vector
// kinds are used here: every collector carries labels.
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	switch m.Type {
	case "counter_vec":
		return prometheus.NewCounterVec(
			prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
			m.Args,
		)
	case "histogram_vec":
		return prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description, Buckets: HistogramBuckets},
			m.Args,
		)
	case "summary_vec":
		return prometheus.NewSummaryVec(
			prometheus.SummaryOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
			m.Args,
		)
	default:
		panic(fmt.Sprintf("metrics: unsupported metric type %q for %s", m.Type, m.ID))
	}
}

const subsystem = "billingsync"

// Business process latency, labelled by process type (e.g. "webhook") and
// subtype (event type).
var MetricsBusinessProcess = &Metric{
	ID:          "bpDur",
	Name:        "bp_dur",
	Description: "process latency in milliseconds",
	Type:        "histogram_vec",
	Args:        []string{"type", "subtype"},
}

var metricRateLimitDecisions = &Metric{
	ID:          "rlDecisions",
	Name:        "ratelimit_decisions_total",
	Description: "Rate limit decisions by category and result (allowed, rejected, fail_open).",
	Type:        "counter_vec",
	Args:        []string{"category", "result"},
}

var metricIdempotencyOutcomes = &Metric{
	ID:          "idemOutcomes",
	Name:        "idempotency_outcomes_total",
	Description: "Idempotency cache outcomes (proceed, replayed, conflict, in_progress, invalid, stored, fail_open).",
	Type:        "counter_vec",
	Args:        []string{"outcome"},
}

var metricWebhookEvents = &Metric{
	ID:          "webhookEvents",
	Name:        "webhook_events_total",
	Description: "Webhook deliveries by event type and outcome.",
	Type:        "counter_vec",
	Args:        []string{"event_type", "outcome"},
}

var metricAccountTransitions = &Metric{
	ID:          "accountTransitions",
	Name:        "account_transitions_total",
	Description: "Persisted account status transitions.",
	Type:        "counter_vec",
	Args:        []string{"from", "to", "reason"},
}

var metricNotificationFailures = &Metric{
	ID:          "notifyFailures",
	Name:        "notification_failures_total",
	Description: "Side-effect notifications that failed to send, by channel.",
	Type:        "counter_vec",
	Args:        []string{"channel"},
}

var (
	BusinessProcess      = mustRegister(MetricsBusinessProcess).(*prometheus.HistogramVec)
	RateLimitDecisions   = mustRegister(metricRateLimitDecisions).(*prometheus.CounterVec)
	IdempotencyOutcomes  = mustRegister(metricIdempotencyOutcomes).(*prometheus.CounterVec)
	WebhookEvents        = mustRegister(metricWebhookEvents).(*prometheus.CounterVec)
	AccountTransitions   = mustRegister(metricAccountTransitions).(*prometheus.CounterVec)
	NotificationFailures = mustRegister(metricNotificationFailures).(*prometheus.CounterVec)
)

// mustRegister builds the collector and registers it on the default
// registry, returning the already registered instance on a repeat.
func mustRegister(m *Metric) prometheus.Collector {
	c := NewMetric(m, subsystem)
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			c = are.ExistingCollector
		} else {
			panic(err)
		}
	}
	m.MetricCollector = c
	return c
}

// ObserveSince records the elapsed milliseconds of a business process.
func ObserveSince(typ, subtype string, start time.Time) {
	BusinessProcess.WithLabelValues(typ, subtype).Observe(MillisecondsSince(start))
}

// MillisecondsSince returns the elapsed time since start in fractional milliseconds.
func MillisecondsSince(start time.Time) float64 {
	return float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond)
}
