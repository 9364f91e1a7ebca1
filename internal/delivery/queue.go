package delivery

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kalambet/triage/internal/storage"
)

// JobType is the job queue type used for complaints.
const JobType = "complaint"

// JobQueue is the part of the SQLite store the queue backend needs.
type JobQueue interface {
	EnqueueJob(ctx context.Context, job storage.Job) error
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
	RequeueRunningJobs(ctx context.Context) (int64, error)
}

// QueuePublisher enqueues complaints as jobs.
type QueuePublisher struct {
	jobs        JobQueue
	maxAttempts int
}

// NewQueuePublisher creates a publisher whose jobs give up after maxAttempts
// failed deliveries.
func NewQueuePublisher(jobs JobQueue, maxAttempts int) *QueuePublisher {
	return &QueuePublisher{jobs: jobs, maxAttempts: maxAttempts}
}

func (p *QueuePublisher) Publish(ctx context.Context, payload []byte) error {
	return p.jobs.EnqueueJob(ctx, storage.Job{
		ID:          uuid.New().String(),
		Type:        JobType,
		PayloadJSON: string(payload),
		MaxAttempts: p.maxAttempts,
	})
}

// QueueSource claims complaint jobs from the SQLite queue.
type QueueSource struct {
	jobs JobQueue
}

// NewQueueSource creates a QueueSource. Jobs a previous process left
// running are put back to pending so they are delivered again.
func NewQueueSource(ctx context.Context, jobs JobQueue) (*QueueSource, error) {
	if _, err := jobs.RequeueRunningJobs(ctx); err != nil {
		return nil, err
	}
	return &QueueSource{jobs: jobs}, nil
}

func (s *QueueSource) Fetch(ctx context.Context, limit int) ([]Message, error) {
	var msgs []Message
	for len(msgs) < limit {
		job, err := s.jobs.ClaimNextJob(ctx, []string{JobType})
		if err != nil {
			if len(msgs) > 0 {
				// Deliver what was already claimed.
				break
			}
			return nil, fmt.Errorf("claiming complaint job: %w", err)
		}
		if job == nil {
			break
		}
		msgs = append(msgs, &jobMessage{jobs: s.jobs, job: job})
	}
	return msgs, nil
}

type jobMessage struct {
	jobs JobQueue
	job  *storage.Job
}

func (m *jobMessage) Payload() []byte { return []byte(m.job.PayloadJSON) }

func (m *jobMessage) Ack(ctx context.Context) error {
	return m.jobs.CompleteJob(ctx, m.job.ID)
}

func (m *jobMessage) Retry(ctx context.Context, reason error) error {
	return m.jobs.FailJob(ctx, m.job.ID, reason.Error())
}
