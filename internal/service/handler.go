package service

import (
	"context"
	"fmt"

	"github.com/bnema/tribora/internal/domain"
)

// Task is one claimed job with its decoded payload. Content is nil for
// jobs that do not belong to a record.
type Task struct {
	Job     *domain.Job
	Payload domain.Payload
	Content *domain.Content
}

func (t *Task) Target() domain.Target {
	return t.Payload.Ref()
}

// Outcome is what a stage hands to the next stage of its chain. The worker
// derives the next job from the plan; handlers only report the storage
// path it should read, if any.
type Outcome struct {
	Source string
}

type StageHandler interface {
	Handle(ctx context.Context, task *Task) (Outcome, error)
}

type StageFunc func(ctx context.Context, task *Task) (Outcome, error)

func (f StageFunc) Handle(ctx context.Context, task *Task) (Outcome, error) {
	return f(ctx, task)
}

func payloadAs[T domain.Payload](task *Task) (T, error) {
	p, ok := task.Payload.(T)
	if !ok {
		var zero T
		return zero, domain.Permanent(task.Job.Type, fmt.Errorf("unexpected payload %T", task.Payload))
	}
	return p, nil
}
