package services

import (
	"context"
	"fmt"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/repositories"
)

// ReconcileRecorder counts reconciliation outcomes.
type ReconcileRecorder interface {
	RecordReconcile(outcome string)
}

type DueByService interface {
	ListDueDates(ctx context.Context, taskID int64) ([]models.DueBy, error)
	CreateDueDate(ctx context.Context, taskID int64, dueDate string) (repositories.ReconcileResult, error)
	UpdateDueDate(ctx context.Context, taskID int64, dueDate string) (repositories.ReconcileResult, error)
	RequireTask(ctx context.Context, taskID int64) error
}

type DueByServiceImpl struct {
	tasks    repositories.TaskRepository
	dueBy    repositories.DueByRepository
	recorder ReconcileRecorder
}

// NewDueByService accepts a nil recorder.
func NewDueByService(tasks repositories.TaskRepository, dueBy repositories.DueByRepository, recorder ReconcileRecorder) *DueByServiceImpl {
	return &DueByServiceImpl{tasks: tasks, dueBy: dueBy, recorder: recorder}
}

func (s *DueByServiceImpl) ListDueDates(ctx context.Context, taskID int64) ([]models.DueBy, error) {
	rows, err := s.dueBy.ListForTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: task id %d has no due dates", repositories.ErrDueDateNotFound, taskID)
	}
	return rows, nil
}

// CreateDueDate rejects a date the task has ever had, active or not.
func (s *DueByServiceImpl) CreateDueDate(ctx context.Context, taskID int64, dueDate string) (repositories.ReconcileResult, error) {
	if err := s.RequireTask(ctx, taskID); err != nil {
		return repositories.ReconcileResult{}, err
	}

	existing, err := s.dueBy.FindByDate(ctx, taskID, dueDate)
	if err != nil {
		return repositories.ReconcileResult{}, err
	}
	if len(existing) > 0 {
		return repositories.ReconcileResult{}, repositories.ErrDueDateConflict
	}

	return s.reconcile(ctx, taskID, dueDate)
}

// UpdateDueDate only moves the task to a date it has had before.
func (s *DueByServiceImpl) UpdateDueDate(ctx context.Context, taskID int64, dueDate string) (repositories.ReconcileResult, error) {
	if err := s.RequireTask(ctx, taskID); err != nil {
		return repositories.ReconcileResult{}, err
	}

	existing, err := s.dueBy.FindByDate(ctx, taskID, dueDate)
	if err != nil {
		return repositories.ReconcileResult{}, err
	}
	if len(existing) == 0 {
		return repositories.ReconcileResult{}, fmt.Errorf("%w: %s, use POST to create it", repositories.ErrDueDateNotFound, dueDate)
	}

	return s.reconcile(ctx, taskID, dueDate)
}

// RequireTask fails with ErrTaskNotFound when the task does not exist.
func (s *DueByServiceImpl) RequireTask(ctx context.Context, taskID int64) error {
	task, err := s.tasks.FetchOne(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("%w: id %d, create the task first", ErrTaskNotFound, taskID)
	}
	return nil
}

func (s *DueByServiceImpl) reconcile(ctx context.Context, taskID int64, dueDate string) (repositories.ReconcileResult, error) {
	res, err := s.dueBy.Reconcile(ctx, taskID, dueDate)
	if s.recorder != nil {
		outcome := string(res.Outcome)
		if err != nil {
			outcome = "error"
		}
		s.recorder.RecordReconcile(outcome)
	}
	return res, err
}
