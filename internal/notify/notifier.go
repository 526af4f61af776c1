package notify

import (
	"context"

	"github.com/dentacare/clinic-portal/pkg/logging"
)

// Notifier enqueues patient notifications.
type Notifier struct {
	queue  Queue
	logger *logging.Logger
}

func NewNotifier(queue Queue, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Notifier{queue: queue, logger: logger}
}

// Enqueue encodes and sends the job. A nil Notifier drops jobs, which lets
// deployments run without email.
func (n *Notifier) Enqueue(ctx context.Context, job Job) error {
	if n == nil || n.queue == nil {
		return nil
	}
	job, body, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := n.queue.Send(ctx, body); err != nil {
		return err
	}
	n.logger.Debug("notification enqueued", "job_id", job.ID, "kind", job.Kind, "appointment_id", job.AppointmentID)
	return nil
}
