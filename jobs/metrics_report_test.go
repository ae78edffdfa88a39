package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ticketscan/scan-backend/services"
)

func TestMetricsReportJobRun(t *testing.T) {
	var checks int32
	job := NewMetricsReportJob(services.NewVerificationService(nil), services.NewFieldExtractor(),
		func(ctx context.Context) error {
			atomic.AddInt32(&checks, 1)
			if _, ok := ctx.Deadline(); !ok {
				t.Error("expected the health check to run with a deadline")
			}
			return errors.New("connection refused")
		})

	job.Run(context.Background())

	if job.Runs() != 1 || atomic.LoadInt32(&checks) != 1 {
		t.Errorf("runs = %d, checks = %d", job.Runs(), checks)
	}
}

func TestMetricsReportJobStartStops(t *testing.T) {
	job := NewMetricsReportJob(services.NewVerificationService(nil), services.NewFieldExtractor(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	job.Start(ctx, 5*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for job.Runs() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if job.Runs() < 2 {
		t.Fatalf("expected at least two runs, got %d", job.Runs())
	}

	time.Sleep(50 * time.Millisecond)
	stopped := job.Runs()
	time.Sleep(50 * time.Millisecond)
	if job.Runs() != stopped {
		t.Error("job kept running after cancel")
	}
}
