package models

// TaskPatch carries the optional fields of a task create or update request.
// A nil pointer means the field was not supplied.
type TaskPatch struct {
	Name         *string
	Description  *string
	CreationDate *string
	Status       *string
	DueDate      *string
}

// Columns returns the supplied Task columns keyed by column name. The due
// date is not a Task column and is never included.
func (p TaskPatch) Columns() map[string]interface{} {
	cols := make(map[string]interface{}, 4)
	if p.Name != nil {
		cols["task_name"] = *p.Name
	}
	if p.Description != nil {
		cols["task_descrip"] = *p.Description
	}
	if p.CreationDate != nil {
		cols["creation_date"] = Date(*p.CreationDate)
	}
	if p.Status != nil {
		cols["task_status"] = *p.Status
	}
	return cols
}

func (p TaskPatch) HasTaskFields() bool {
	return p.Name != nil || p.Description != nil || p.CreationDate != nil || p.Status != nil
}

// Task builds the row to insert from the supplied fields.
func (p TaskPatch) Task() Task {
	task := Task{Description: p.Description, Status: p.Status}
	if p.Name != nil {
		task.Name = *p.Name
	}
	if p.CreationDate != nil {
		d := Date(*p.CreationDate)
		task.CreationDate = &d
	}
	return task
}
