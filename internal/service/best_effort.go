package service

import (
	"context"
	"time"

	"sitecms/internal/metrics"

	"github.com/sirupsen/logrus"
)

const defaultBestEffortTimeout = 10 * time.Second

// bestEffort runs call detached from the caller's cancellation, logs and
// counts a failure, and never returns it.
func bestEffort(
	ctx context.Context,
	logger logrus.FieldLogger,
	timeout time.Duration,
	operation string,
	fields logrus.Fields,
	call func(ctx context.Context) error,
) {
	if timeout <= 0 {
		timeout = defaultBestEffortTimeout
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := call(callCtx); err != nil {
		metrics.Compensations.WithLabelValues(operation, "failed").Inc()
		logger.WithFields(fields).
			WithField("operation", operation).
			WithError(err).
			Error("best-effort call failed")
		return
	}
	metrics.Compensations.WithLabelValues(operation, "ok").Inc()
}
