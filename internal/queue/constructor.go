package queue

import (
	"context"

	"github.com/dailyquill/dailyquill/internal/models"
)

// cycleRunner is the slice of the scheduler the worker needs.
type cycleRunner interface {
	Run(ctx context.Context) (*models.Post, error)
}

type Queue struct {
	s cycleRunner
}

func NewQueue(s cycleRunner) *Queue {
	return &Queue{s: s}
}

const TaskTypePublishCycle = "publish:cycle"

type PublishCyclePayload struct {
	Manual bool `json:"manual"`
}
