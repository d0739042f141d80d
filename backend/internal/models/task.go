package models

// StatusDeleted is the sentinel status written by a soft delete.
const StatusDeleted = "Deleted"

// DefaultStatus mirrors the column default of "Task".task_status.
const DefaultStatus = "Created"

// Task column defaults (creation_date, task_status) live in the schema
// migrations; inserts leave unsupplied columns out so the store fills them.
type Task struct {
	ID           int64   `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Name         string  `json:"task_name" gorm:"column:task_name;not null"`
	Description  *string `json:"task_descrip" gorm:"column:task_descrip"`
	CreationDate *Date   `json:"creation_date" gorm:"column:creation_date;type:date"`
	Status       *string `json:"task_status" gorm:"column:task_status"`
}

func (Task) TableName() string {
	return "Task"
}
