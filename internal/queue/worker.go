package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/crosspost/internal/service"
)

// HandlePublishPostTask publishes the post named in the payload. A post that
// no longer exists is dropped without retry.
func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.PostID == 0 {
		return fmt.Errorf("missing post id: %w", asynq.SkipRetry)
	}

	err := q.ps.PublishPost(ctx, payload.PostID)
	if errors.Is(err, service.ErrNotFoundOrExpired) {
		return fmt.Errorf("post %d: %v: %w", payload.PostID, err, asynq.SkipRetry)
	}
	return err
}
