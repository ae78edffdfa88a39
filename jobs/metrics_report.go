package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ticketscan/scan-backend/services"
)

// MetricsReportJob periodically logs verification, database, and extraction metrics
type MetricsReportJob struct {
	Verifier    *services.VerificationService
	Extractor   *services.FieldExtractor
	HealthCheck func(ctx context.Context) error

	runs int64
}

func NewMetricsReportJob(verifier *services.VerificationService, extractor *services.FieldExtractor, healthCheck func(ctx context.Context) error) *MetricsReportJob {
	return &MetricsReportJob{
		Verifier:    verifier,
		Extractor:   extractor,
		HealthCheck: healthCheck,
	}
}

// Start runs the job every interval until ctx is cancelled
func (j *MetricsReportJob) Start(ctx context.Context, interval time.Duration) {
	logrus.WithField("interval", interval).Info("Starting Metrics Report Job")
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logrus.Info("Metrics Report Job stopped")
				return
			case <-ticker.C:
				j.Run(ctx)
			}
		}
	}()
}

func (j *MetricsReportJob) Run(ctx context.Context) {
	atomic.AddInt64(&j.runs, 1)

	j.Verifier.GetServiceMetrics().LogSummary()
	j.Verifier.GetDatabaseMetrics().LogDatabaseSummary()
	j.Extractor.Metrics().LogSummary()

	if j.HealthCheck == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := j.HealthCheck(ctx); err != nil {
		logrus.WithError(err).Error("Metrics Report Job: database health check failed")
	}
}

// Runs returns how many times the job has run
func (j *MetricsReportJob) Runs() int64 {
	return atomic.LoadInt64(&j.runs)
}
