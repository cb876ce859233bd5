package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const publishMaxRetry = 3

// Scheduler enqueues a post for publishing at a given time.
type Scheduler interface {
	SchedulePost(ctx context.Context, postID int64, at time.Time) error
}

type asynqScheduler struct {
	client *asynq.Client
	now    func() time.Time
}

func NewScheduler(client *asynq.Client) Scheduler {
	return &asynqScheduler{client: client, now: time.Now}
}

func NewPublishPostTask(postID int64) (*asynq.Task, error) {
	payload, err := json.Marshal(PublishPostPayload{PostID: postID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePublishPost, payload, asynq.MaxRetry(publishMaxRetry)), nil
}

// SchedulePost enqueues the publish task. A time in the past publishes
// right away.
func (s *asynqScheduler) SchedulePost(ctx context.Context, postID int64, at time.Time) error {
	task, err := NewPublishPostTask(postID)
	if err != nil {
		return err
	}

	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	info, err := s.client.EnqueueContext(ctx, task, asynq.ProcessIn(delay))
	if err != nil {
		slog.Error("enqueueing publish task", "post_id", postID, "error", err)
		return err
	}

	slog.Info("publish task scheduled", "post_id", postID, "task_id", info.ID, "process_at", info.NextProcessAt)
	return nil
}
