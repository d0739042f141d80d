package repositories

import (
	"context"
	"errors"
	"fmt"

	"task-tracker/backend/internal/models"

	"gorm.io/gorm"
)

type TaskRepository interface {
	Insert(ctx context.Context, patch models.TaskPatch) (int64, error)
	FetchAll(ctx context.Context) ([]models.Task, error)
	FetchOne(ctx context.Context, id int64) (*models.Task, error)
	Update(ctx context.Context, id int64, patch models.TaskPatch) error
	SoftDelete(ctx context.Context, id int64) error
}

type TaskRepositoryImpl struct {
	db    *gorm.DB
	dueBy DueByRepository
}

func NewTaskRepository(db *gorm.DB, dueBy DueByRepository) *TaskRepositoryImpl {
	return &TaskRepositoryImpl{db: db, dueBy: dueBy}
}

// Insert stores a task with only the supplied columns so the store defaults
// fill the rest. A supplied due date is reconciled afterwards in its own
// transaction; if that step fails the task stays persisted and the error is
// returned together with the new id.
func (r *TaskRepositoryImpl) Insert(ctx context.Context, patch models.TaskPatch) (int64, error) {
	task := patch.Task()
	columns := []string{"task_name"}
	for col := range patch.Columns() {
		if col != "task_name" {
			columns = append(columns, col)
		}
	}

	if err := r.db.WithContext(ctx).Select(columns).Create(&task).Error; err != nil {
		return 0, storeError("insert task", err)
	}

	if patch.DueDate != nil {
		if _, err := r.dueBy.Reconcile(ctx, task.ID, *patch.DueDate); err != nil {
			return task.ID, fmt.Errorf("task %d created but due date failed: %w", task.ID, err)
		}
	}

	return task.ID, nil
}

func (r *TaskRepositoryImpl) FetchAll(ctx context.Context) ([]models.Task, error) {
	tasks := make([]models.Task, 0)
	result := r.db.WithContext(ctx).Order("id ASC").Find(&tasks)
	if result.Error != nil {
		return nil, storeError("fetch tasks", result.Error)
	}
	return tasks, nil
}

// FetchOne returns nil without error when no task has the id.
func (r *TaskRepositoryImpl) FetchOne(ctx context.Context, id int64) (*models.Task, error) {
	var task models.Task
	result := r.db.WithContext(ctx).Where("id = ?", id).Take(&task)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, storeError("fetch task", result.Error)
	}
	return &task, nil
}

// Update writes the supplied task columns, then reconciles the due date if one
// was supplied. A due-date-only patch leaves the task row untouched.
func (r *TaskRepositoryImpl) Update(ctx context.Context, id int64, patch models.TaskPatch) error {
	if !patch.HasTaskFields() && patch.DueDate == nil {
		return ErrNoFieldsProvided
	}

	if patch.HasTaskFields() {
		result := r.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(patch.Columns())
		if result.Error != nil {
			return storeError("update task", result.Error)
		}
	}

	if patch.DueDate != nil {
		if _, err := r.dueBy.Reconcile(ctx, id, *patch.DueDate); err != nil {
			return err
		}
	}

	return nil
}

// SoftDelete marks the task as deleted. It succeeds whether or not a row
// matched; callers check existence first.
func (r *TaskRepositoryImpl) SoftDelete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Update("task_status", models.StatusDeleted)
	if result.Error != nil {
		return storeError("delete task", result.Error)
	}
	return nil
}
