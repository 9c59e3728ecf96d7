package repository

import (
	"context"

	"task-manager/internal/model"
)

// TasksKey holds the serialized task list.
const TasksKey = "todoTasks"

// TaskRepository persists the whole task list under TasksKey.
type TaskRepository struct {
	kv KV
}

func NewTaskRepository(kv KV) *TaskRepository {
	return &TaskRepository{kv: kv}
}

// Load reports found=false when nothing was persisted yet.
func (r *TaskRepository) Load(ctx context.Context) ([]model.Task, bool, error) {
	return loadCollection[model.Task](ctx, r.kv, TasksKey)
}

func (r *TaskRepository) Save(ctx context.Context, tasks []model.Task) error {
	return saveCollection(ctx, r.kv, TasksKey, tasks)
}
