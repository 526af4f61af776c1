package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dentacare/clinic-portal/internal/observability/metrics"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	deleteTimeoutSeconds = 5
)

// Worker consumes notification jobs and sends patient emails.
type Worker struct {
	queue   Queue
	mailer  Mailer
	metrics *metrics.PortalMetrics
	logger  *logging.Logger

	workers   int
	waitSecs  int
	batchSize int
	wg        sync.WaitGroup
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*Worker)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(w *Worker) {
		if count > 0 {
			w.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(w *Worker) {
		if seconds >= 0 && seconds <= 20 {
			w.waitSecs = seconds
		}
	}
}

func WithMetrics(m *metrics.PortalMetrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

func NewWorker(queue Queue, mailer Mailer, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	w := &Worker{
		queue:     queue,
		mailer:    mailer,
		logger:    logger,
		workers:   defaultWorkerCount,
		waitSecs:  defaultWaitSeconds,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the consumers. They stop when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all consumers have returned.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("notify worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("notify worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.batchSize, w.waitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive notification jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.Handle(ctx, msg)
		}
	}
}

// Handle processes one message. Undecodable jobs are dropped; send failures
// leave the message on the queue so it is redelivered.
func (w *Worker) Handle(ctx context.Context, msg Message) {
	job, err := decodeJob(msg.Body)
	if err != nil {
		w.logger.Error("dropping notification job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	email, err := Compose(job)
	if err != nil {
		w.logger.Error("dropping notification job", "error", err, "job_id", job.ID)
		w.metrics.ObserveNotification(string(job.Kind), "invalid")
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	if err := w.mailer.Deliver(ctx, email); err != nil {
		w.logger.Warn("notification send failed", "error", err, "job_id", job.ID, "kind", job.Kind)
		w.metrics.ObserveNotification(string(job.Kind), "failed")
		return
	}

	w.metrics.ObserveNotification(string(job.Kind), "sent")
	w.logger.Info("notification sent", "job_id", job.ID, "kind", job.Kind, "appointment_id", job.AppointmentID)
	w.deleteMessage(msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete notification job", "error", err)
	}
}
