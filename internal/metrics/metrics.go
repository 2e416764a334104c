package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CodesIssued = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "sitecms", Name: "verification_codes_issued_total", Help: "Number of verification codes issued."},
	)
	CodesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "sitecms", Name: "verification_codes_rejected_total", Help: "Verification code issue or consume attempts rejected, by reason."},
		[]string{"reason"},
	)
	Compensations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "sitecms", Name: "best_effort_calls_total", Help: "Best-effort provider calls (compensations and cleanups) by operation and outcome."},
		[]string{"operation", "outcome"},
	)
	AuditWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "sitecms", Name: "audit_write_failures_total", Help: "Audit ledger writes that failed and were swallowed."},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "sitecms", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(CodesIssued)
	reg.MustRegister(CodesRejected)
	reg.MustRegister(Compensations)
	reg.MustRegister(AuditWriteFailures)
	reg.MustRegister(RateLimitRejected)
}
