package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Config carries the constant labels stamped on every series and the OTLP
// export settings for the meter provider.
type Config struct {
	ServiceName string
	Environment string

	OtelEnabled      bool
	ExporterEndpoint string
	ExporterProtocol string
}

const (
	JobReasonDeadlineExceeded     = "deadline_exceeded"
	JobReasonDBLockTimeout        = "db_lock_timeout"
	JobReasonSerializationFailure = "serialization_failure"
	JobReasonUniqueViolation      = "unique_violation"
	JobReasonUnknown              = "unknown"
)

const (
	TriggerScheduler = "scheduler"
	TriggerHTTP      = "http"
	TriggerManual    = "manual"
)

// BillingMetrics captures pricing and monthly billing health signals.
type BillingMetrics struct {
	runs            *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	providerResults *prometheus.CounterVec
	billedAmount    prometheus.Counter
	notifyFailures  *prometheus.CounterVec
	quotes          *prometheus.CounterVec
	quoteMismatches *prometheus.CounterVec
	priorityCredits prometheus.Counter
	jobRuns         *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobTimeouts     *prometheus.CounterVec
	jobErrors       *prometheus.CounterVec
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

// Billing returns the singleton billing metrics registry.
func Billing() *BillingMetrics {
	return BillingWithConfig(Config{})
}

// BillingWithConfig returns the singleton registry, registering it with the given labels on first use.
func BillingWithConfig(cfg Config) *BillingMetrics {
	billingMetricsOnce.Do(func() {
		billingMetrics = newBillingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return billingMetrics
}

// ResetBillingMetricsForTest swaps the singleton for one bound to registerer.
func ResetBillingMetricsForTest(registerer prometheus.Registerer) *BillingMetrics {
	billingMetricsOnce = sync.Once{}
	billingMetrics = nil
	billingMetricsOnce.Do(func() {
		billingMetrics = newBillingMetrics(registerer, Config{ServiceName: "ecodeli", Environment: "test"})
	})
	return billingMetrics
}

func newBillingMetrics(registerer prometheus.Registerer, cfg Config) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "ecodeli"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &BillingMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ecodeli_billing_runs_total",
			Help:        "Monthly billing runs by trigger and outcome.",
			ConstLabels: constLabels,
		}, []string{"trigger", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "ecodeli_billing_run_duration_seconds",
			Help:        "Wall time of a monthly billing run.",
			Buckets:     []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		}, []string{"trigger"}),
		providerResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ecodeli_billing_provider_results_total",
			Help:        "Per-provider billing outcomes.",
			ConstLabels: constLabels,
		}, []string{"status", "reason"}),
		billedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ecodeli_billing_billed_amount_total",
			Help:        "Sum of invoice totals generated by billing runs.",
			ConstLabels: constLabels,
		}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ecodeli_billing_notification_failures_total",
			Help:        "Notifications that could not be delivered during billing.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ecodeli_pricing_quotes_total",
			Help:        "Price quotes computed by plan and kind.",
			ConstLabels: constLabels,
		}, []string{"plan", "kind"}),
		quoteMismatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ecodeli_pricing_quote_mismatches_total",
			Help:        "Checkouts rejected because the client price differed from the server quote.",
			ConstLabels: constLabels,
		}, []string{"plan"}),
		priorityCredits: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ecodeli_pricing_priority_credits_consumed_total",
			Help:        "Free priority credits consumed by premium subscribers.",
			ConstLabels: constLabels,
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ecodeli_scheduler_job_runs_total",
			Help:        "Scheduler job runs by name.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "ecodeli_scheduler_job_duration_seconds",
			Help:        "Scheduler job latency.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 600, 1800},
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ecodeli_scheduler_job_timeouts_total",
			Help:        "Scheduler job timeouts.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ecodeli_scheduler_job_errors_total",
			Help:        "Scheduler job errors by low-cardinality reason.",
			ConstLabels: constLabels,
		}, []string{"job", "reason"}),
	}

	registerer.MustRegister(
		m.runs,
		m.runDuration,
		m.providerResults,
		m.billedAmount,
		m.notifyFailures,
		m.quotes,
		m.quoteMismatches,
		m.priorityCredits,
		m.jobRuns,
		m.jobDuration,
		m.jobTimeouts,
		m.jobErrors,
	)
	return m
}

func (m *BillingMetrics) ObserveRun(trigger, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(trigger, outcome).Inc()
	m.runDuration.WithLabelValues(trigger).Observe(duration.Seconds())
}

func (m *BillingMetrics) IncProviderResult(status, reason string) {
	if m == nil {
		return
	}
	m.providerResults.WithLabelValues(status, reason).Inc()
}

func (m *BillingMetrics) AddBilled(amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.billedAmount.Add(amount)
}

func (m *BillingMetrics) IncNotificationFailure(kind string) {
	if m == nil {
		return
	}
	m.notifyFailures.WithLabelValues(kind).Inc()
}

func (m *BillingMetrics) IncQuote(plan, kind string) {
	if m == nil {
		return
	}
	m.quotes.WithLabelValues(plan, kind).Inc()
}

func (m *BillingMetrics) IncQuoteMismatch(plan string) {
	if m == nil {
		return
	}
	m.quoteMismatches.WithLabelValues(plan).Inc()
}

func (m *BillingMetrics) IncPriorityCreditConsumed() {
	if m == nil {
		return
	}
	m.priorityCredits.Inc()
}

func (m *BillingMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *BillingMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *BillingMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

func (m *BillingMetrics) IncJobError(job, reason string) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, reason).Inc()
}

// ClassifyJobReason maps job errors to low-cardinality reasons.
func ClassifyJobReason(err error) string {
	if err == nil {
		return JobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return JobReasonDeadlineExceeded
	}
	if hasPGCode(err, "55P03") {
		return JobReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return JobReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return JobReasonUniqueViolation
	}
	return JobReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
