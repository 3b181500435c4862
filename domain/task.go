package domain

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"
)

const (
	MinTitleLength       = 1
	MaxTitleLength       = 50
	MaxDescriptionLength = 300
)

// now is the clock used to validate due dates on update.
var now = time.Now

// Task is a unit of work held by exactly one Column. ID and creation time never
// change once the task exists.
type Task struct {
	id          int
	created     time.Time
	title       string
	description string
	due         time.Time
	assignee    string

	// columnID is the stable ID of the holding column as recorded in the mirror.
	columnID int
	row      mirrorRow
}

// NewTask validates the fields and returns an unpersisted task. The due date
// must not be earlier than created.
func NewTask(id int, created time.Time, title, description string, due time.Time, assignee string) (*Task, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if err := validateDescription(description); err != nil {
		return nil, err
	}
	if err := validateDueDate(due, created); err != nil {
		return nil, err
	}
	return &Task{
		id:          id,
		created:     created,
		title:       title,
		description: description,
		due:         due,
		assignee:    assignee,
		row:         mirrorRow{table: TableTasks},
	}, nil
}

func taskFromEntity(e TaskEntity, store Mirror) *Task {
	return &Task{
		id:          e.ID,
		created:     e.CreationTime,
		title:       e.Title,
		description: e.Description,
		due:         e.DueDate,
		assignee:    e.Assignee,
		columnID:    e.ColumnID,
		row:         mirrorRow{store: store, table: TableTasks, key: e.Entity, persisted: true},
	}
}

func (t *Task) ID() int                 { return t.id }
func (t *Task) CreationTime() time.Time { return t.created }
func (t *Task) Title() string           { return t.title }
func (t *Task) Description() string     { return t.description }
func (t *Task) DueDate() time.Time      { return t.due }
func (t *Task) Assignee() string        { return t.assignee }

// Persisted reports whether the task has a durable row.
func (t *Task) Persisted() bool { return t.row.persisted }

// Entity returns a snapshot of the task's durable row.
func (t *Task) Entity() TaskEntity {
	return TaskEntity{
		Entity:       t.row.key,
		ID:           t.id,
		ColumnID:     t.columnID,
		Title:        t.title,
		Description:  t.description,
		CreationTime: t.created,
		DueDate:      t.due,
		Assignee:     t.assignee,
	}
}

func (t *Task) bind(board BoardKey, store Mirror) {
	t.row.store = store
	t.row.key = TaskEntityKey(board, t.id)
}

func (t *Task) persist(ctx context.Context) error {
	return t.row.insert(ctx, t.Entity())
}

func (t *Task) setTitle(ctx context.Context, title string) error {
	if err := validateTitle(title); err != nil {
		return err
	}
	if err := t.row.write(ctx, FieldTitle, title); err != nil {
		return err
	}
	t.title = title
	return nil
}

func (t *Task) setDescription(ctx context.Context, description string) error {
	if err := validateDescription(description); err != nil {
		return err
	}
	if err := t.row.write(ctx, FieldDescription, description); err != nil {
		return err
	}
	t.description = description
	return nil
}

func (t *Task) setDueDate(ctx context.Context, due time.Time) error {
	if err := validateDueDate(due, now()); err != nil {
		return err
	}
	if err := t.row.write(ctx, FieldDueDate, due); err != nil {
		return err
	}
	t.due = due
	return nil
}

// setAssignee has no format rule; membership is checked by the caller.
func (t *Task) setAssignee(ctx context.Context, assignee string) error {
	if err := t.row.write(ctx, FieldAssignee, assignee); err != nil {
		return err
	}
	t.assignee = assignee
	return nil
}

// advance records the column now holding the task.
func (t *Task) advance(ctx context.Context, columnID int) error {
	if err := t.row.write(ctx, FieldColumnID, columnID); err != nil {
		return err
	}
	t.columnID = columnID
	return nil
}

func validateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n < MinTitleLength {
		return &FieldError{Field: "title", Reason: fmt.Sprintf("must contain at least %d character", MinTitleLength)}
	}
	if n > MaxTitleLength {
		return &FieldError{Field: "title", Reason: fmt.Sprintf("cannot be longer than %d characters", MaxTitleLength)}
	}
	return nil
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return &FieldError{Field: "description", Reason: fmt.Sprintf("cannot be longer than %d characters", MaxDescriptionLength)}
	}
	return nil
}

func validateDueDate(due, at time.Time) error {
	if due.IsZero() {
		return &FieldError{Field: "due date", Reason: "is required"}
	}
	if due.Before(at) {
		return &FieldError{Field: "due date", Reason: "is already in the past"}
	}
	return nil
}
