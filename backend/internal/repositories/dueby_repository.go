package repositories

import (
	"context"
	"errors"
	"fmt"

	"task-tracker/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReconcileOutcome string

const (
	OutcomeUnchanged   ReconcileOutcome = "unchanged"
	OutcomeReactivated ReconcileOutcome = "reactivated"
	OutcomeInserted    ReconcileOutcome = "inserted"
)

type ReconcileResult struct {
	Outcome ReconcileOutcome
	Message string
}

type DueByRepository interface {
	ListForTask(ctx context.Context, taskID int64) ([]models.DueBy, error)
	FindByDate(ctx context.Context, taskID int64, dueDate string) ([]models.DueBy, error)
	Reconcile(ctx context.Context, taskID int64, dueDate string) (ReconcileResult, error)
}

type DueByRepositoryImpl struct {
	db *gorm.DB
}

func NewDueByRepository(db *gorm.DB) *DueByRepositoryImpl {
	return &DueByRepositoryImpl{db: db}
}

func (r *DueByRepositoryImpl) ListForTask(ctx context.Context, taskID int64) ([]models.DueBy, error) {
	rows := make([]models.DueBy, 0)
	result := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("id ASC").Find(&rows)
	if result.Error != nil {
		return nil, storeError("list due dates", result.Error)
	}
	return rows, nil
}

func (r *DueByRepositoryImpl) FindByDate(ctx context.Context, taskID int64, dueDate string) ([]models.DueBy, error) {
	rows := make([]models.DueBy, 0)
	result := r.db.WithContext(ctx).
		Where("task_id = ? AND due_date = ?", taskID, dueDate).
		Order("id ASC").
		Find(&rows)
	if result.Error != nil {
		return nil, storeError("find due date", result.Error)
	}
	return rows, nil
}

// Reconcile makes dueDate the active due date of the task inside a single
// transaction. Previous dates are deactivated, never removed, and a date seen
// before is reactivated instead of inserted again.
func (r *DueByRepositoryImpl) Reconcile(ctx context.Context, taskID int64, dueDate string) (ReconcileResult, error) {
	var res ReconcileResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locking := clause.Locking{Strength: "UPDATE"}

		// Serializes reconciles of the same task, including the first one
		// when no due-by row exists yet to lock.
		var parent models.Task
		if err := tx.Clauses(locking).Select("id").Where("id = ?", taskID).Take(&parent).Error; err != nil &&
			!errors.Is(err, gorm.ErrRecordNotFound) {
			return storeError("lock task", err)
		}

		var rows []models.DueBy
		if err := tx.Clauses(locking).Where("task_id = ?", taskID).Order("id ASC").Find(&rows).Error; err != nil {
			return storeError("load due dates", err)
		}

		active, present := scanDueDates(rows, dueDate)
		if active != nil && *active == dueDate {
			res = ReconcileResult{
				Outcome: OutcomeUnchanged,
				Message: fmt.Sprintf("Due date %s is already the active one for task id: %d", dueDate, taskID),
			}
			return nil
		}

		if active != nil {
			err := tx.Model(&models.DueBy{}).
				Where("task_id = ? AND is_active = ?", taskID, true).
				Update("is_active", false).Error
			if err != nil {
				return storeError("deactivate due date", err)
			}
		}

		if present {
			err := tx.Model(&models.DueBy{}).
				Where("task_id = ? AND due_date = ?", taskID, dueDate).
				Update("is_active", true).Error
			if err != nil {
				return storeError("reactivate due date", err)
			}
			res = ReconcileResult{
				Outcome: OutcomeReactivated,
				Message: fmt.Sprintf("Reactivated due date %s for task id: %d", dueDate, taskID),
			}
			return nil
		}

		row := models.DueBy{TaskID: taskID, DueDate: models.Date(dueDate), IsActive: true}
		if err := tx.Create(&row).Error; err != nil {
			return storeError("insert due date", err)
		}
		res = ReconcileResult{
			Outcome: OutcomeInserted,
			Message: fmt.Sprintf("Inserted new active due date %s for task id: %d", dueDate, taskID),
		}
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}

	return res, nil
}

// scanDueDates returns the active due date (the last active row wins if
// several are active) and whether any row already holds dueDate.
func scanDueDates(rows []models.DueBy, dueDate string) (active *string, present bool) {
	for _, row := range rows {
		d := row.DueDate.String()
		if row.IsActive {
			active = &d
		}
		if d == dueDate {
			present = true
		}
	}
	return active, present
}
