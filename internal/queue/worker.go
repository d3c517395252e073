package queue

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
)

// HandlePublishCycleTask runs one publish cycle. Cycle-level failures
// wait for the next scheduled cycle, so they never surface as a task
// error that asynq would retry and re-run within minutes.
func (j *Queue) HandlePublishCycleTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishCyclePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Printf("Publish cycle payload rejected: %v", err)
		return asynq.SkipRetry
	}

	post, err := j.s.Run(ctx)
	if err != nil {
		log.Printf("Publish cycle error: %v", err)
		return nil
	}
	if post != nil {
		log.Printf("Publish cycle finished: post %d %s", post.ID, post.Status)
	}

	return nil
}
