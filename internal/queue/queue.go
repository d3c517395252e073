package queue

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// uniqueWindow keeps an identical cycle from being queued twice while
// one is already pending, matching the scheduler's single-active-run
// rule at the queue boundary.
const uniqueWindow = time.Minute

func EnqueuePublishCycle(asynqClient *asynq.Client, payload PublishCyclePayload, delay time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishCycle, taskPayload, asynq.MaxRetry(0))

	_, err = asynqClient.Enqueue(task, asynq.ProcessIn(delay), asynq.Unique(delay+uniqueWindow))
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			log.Printf("Publish cycle already queued: %+v", payload)
			return nil
		}
		return err
	}

	log.Printf("Publish cycle scheduled: %+v", payload)
	return nil
}
