package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	calls []int64
	err   error
}

func (f *fakePublisher) PublishPost(ctx context.Context, postID int64) error {
	f.calls = append(f.calls, postID)
	return f.err
}

func TestHandlePublishPostTask(t *testing.T) {
	ps := &fakePublisher{}
	q := NewQueue(ps)

	task, err := NewPublishPostTask(12)
	require.NoError(t, err)
	assert.Equal(t, TaskTypePublishPost, task.Type())

	require.NoError(t, q.HandlePublishPostTask(context.Background(), task))
	assert.Equal(t, []int64{12}, ps.calls)
}

func TestHandlePublishPostTaskSkipsRetry(t *testing.T) {
	t.Run("bad payload", func(t *testing.T) {
		ps := &fakePublisher{}
		err := NewQueue(ps).HandlePublishPostTask(context.Background(), asynq.NewTask(TaskTypePublishPost, []byte("{")))
		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.Empty(t, ps.calls)
	})

	t.Run("missing post", func(t *testing.T) {
		ps := &fakePublisher{err: service.ErrNotFoundOrExpired}
		task, err := NewPublishPostTask(3)
		require.NoError(t, err)

		err = NewQueue(ps).HandlePublishPostTask(context.Background(), task)
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})
}

func TestHandlePublishPostTaskRetriesInfraErrors(t *testing.T) {
	boom := errors.New("connection refused")
	ps := &fakePublisher{err: boom}
	task, err := NewPublishPostTask(5)
	require.NoError(t, err)

	err = NewQueue(ps).HandlePublishPostTask(context.Background(), task)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}
