// Package validation checks the shape of incoming task and due date payloads
// before anything reaches the repositories.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"regexp"
	"strconv"

	"task-tracker/backend/internal/models"
)

type Kind string

const (
	KindNotJSON          Kind = "not_json"
	KindEmptyBody        Kind = "empty_body"
	KindMissingName      Kind = "missing_name"
	KindMissingDueDate   Kind = "missing_due_date"
	KindBadDueDateFormat Kind = "bad_due_date_format"
	KindInvalidID        Kind = "invalid_id"
	KindInvalidField     Kind = "invalid_field"
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a validation error of the given kind.
func IsKind(err error, kind Kind) bool {
	var verr *Error
	return errors.As(err, &verr) && verr.Kind == kind
}

var (
	// Shape only: 2024-99-99 passes.
	dueDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	taskIDPattern  = regexp.MustCompile(`^-?\d+$`)
)

// Payload is a decoded JSON object keyed by field name. Values stay raw so
// absent, null and wrongly typed fields can be told apart.
type Payload map[string]json.RawMessage

// DecodePayload parses a request body into a Payload.
func DecodePayload(contentType string, body []byte) (Payload, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/json" {
		return nil, newError(KindNotJSON, "Request does not contain JSON data")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, newError(KindEmptyBody, "Empty request body")
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, newError(KindNotJSON, "Invalid JSON format: %v", err)
	}
	if len(payload) == 0 {
		return nil, newError(KindEmptyBody, "Empty request body")
	}
	return payload, nil
}

// ValidateTaskPayload extracts the recognized task fields. Unknown keys are
// ignored. When requireName is set the payload must carry task_name.
func ValidateTaskPayload(payload Payload, requireName bool) (models.TaskPatch, error) {
	var patch models.TaskPatch
	if len(payload) == 0 {
		return patch, newError(KindEmptyBody, "Empty request body")
	}

	if requireName {
		if _, ok := payload["task_name"]; !ok {
			return patch, newError(KindMissingName, "A new Task must have a 'task_name'.")
		}
	}

	var err error
	if patch.Name, err = optionalString(payload, "task_name"); err != nil {
		return patch, err
	}
	if patch.Name != nil && *patch.Name == "" {
		return patch, newError(KindInvalidField, "'task_name' must not be empty")
	}
	if requireName && patch.Name == nil {
		return patch, newError(KindMissingName, "A new Task must have a 'task_name'.")
	}
	if patch.Description, err = optionalString(payload, "task_descrip"); err != nil {
		return patch, err
	}
	if patch.CreationDate, err = optionalString(payload, "creation_date"); err != nil {
		return patch, err
	}
	if patch.Status, err = optionalString(payload, "task_status"); err != nil {
		return patch, err
	}

	if _, ok := payload["due_date"]; ok && !isNull(payload["due_date"]) {
		dueDate, err := ValidateDueDate(payload)
		if err != nil {
			return patch, err
		}
		patch.DueDate = &dueDate
	}

	return patch, nil
}

// ValidateDueDate returns the due_date of the payload when it is a string in
// YYYY-MM-DD form.
func ValidateDueDate(payload Payload) (string, error) {
	raw, ok := payload["due_date"]
	if !ok || isNull(raw) {
		return "", newError(KindMissingDueDate, "A new Due Date must have a valid 'due_date' with the 'YYYY-MM-DD' format.")
	}

	var dueDate string
	if err := json.Unmarshal(raw, &dueDate); err != nil || !dueDatePattern.MatchString(dueDate) {
		return "", newError(KindBadDueDateFormat, "A new Due Date must have a valid 'due_date' with the 'YYYY-MM-DD' format.")
	}
	return dueDate, nil
}

// ValidateTaskID parses a task id path parameter. Negative ids are accepted;
// they never match a row.
func ValidateTaskID(raw string) (int64, error) {
	if !taskIDPattern.MatchString(raw) {
		return 0, newError(KindInvalidID, "Parameter 'task-id' must be a valid integer.")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, newError(KindInvalidID, "Parameter 'task-id' is out of range.")
	}
	return id, nil
}

func optionalString(payload Payload, key string) (*string, error) {
	raw, ok := payload[key]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, newError(KindInvalidField, "'%s' must be a string", key)
	}
	return &s, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
