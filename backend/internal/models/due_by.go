package models

// DueBy is one entry of a task's due date history. At most one row per task
// is active; inactive rows are kept as history.
type DueBy struct {
	ID       int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	TaskID   int64 `json:"task_id" gorm:"column:task_id;not null;index"`
	DueDate  Date  `json:"due_date" gorm:"column:due_date;type:date;not null"`
	IsActive bool  `json:"is_active" gorm:"column:is_active;not null"`
}

func (DueBy) TableName() string {
	return "Due_by"
}
