package services

import (
	"context"
	"errors"
	"fmt"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/repositories"
)

var ErrTaskNotFound = errors.New("task not found")

type TaskService interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	CreateTask(ctx context.Context, patch models.TaskPatch) (int64, error)
	UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) error
	DeleteTask(ctx context.Context, id int64) error
}

type TaskServiceImpl struct {
	tasks repositories.TaskRepository
}

func NewTaskService(tasks repositories.TaskRepository) *TaskServiceImpl {
	return &TaskServiceImpl{tasks: tasks}
}

func (s *TaskServiceImpl) ListTasks(ctx context.Context) ([]models.Task, error) {
	return s.tasks.FetchAll(ctx)
}

func (s *TaskServiceImpl) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	task, err := s.tasks.FetchOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: id %d", ErrTaskNotFound, id)
	}
	return task, nil
}

// CreateTask may return a non-zero id together with an error when the task
// row was stored but its due date was not.
func (s *TaskServiceImpl) CreateTask(ctx context.Context, patch models.TaskPatch) (int64, error) {
	return s.tasks.Insert(ctx, patch)
}

func (s *TaskServiceImpl) UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) error {
	if _, err := s.GetTask(ctx, id); err != nil {
		return err
	}
	return s.tasks.Update(ctx, id, patch)
}

func (s *TaskServiceImpl) DeleteTask(ctx context.Context, id int64) error {
	if _, err := s.GetTask(ctx, id); err != nil {
		return err
	}
	return s.tasks.SoftDelete(ctx, id)
}
