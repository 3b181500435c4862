package domain

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// Unlimited is the limit of a column without a capacity bound.
const Unlimited = -1

// Role is a column's position-derived role within its board.
type Role int

const (
	RoleNormal Role = iota
	// RoleIntake is the leftmost column; new tasks always enter it.
	RoleIntake
	// RoleTerminal is the rightmost column; tasks in it are read-only.
	RoleTerminal
)

func (r Role) String() string {
	switch r {
	case RoleIntake:
		return "intake"
	case RoleTerminal:
		return "terminal"
	default:
		return "normal"
	}
}

// Column is an ordered container of tasks with a name and an optional
// capacity limit. Intra-column order is not significant.
type Column struct {
	id      int
	name    string
	ordinal int
	limit   int
	role    Role
	tasks   map[int]*Task
	row     mirrorRow

	// ordinalStale is set when the stored ordinal differs from ordinal.
	ordinalStale bool
}

// NewColumn returns an unbounded, unpersisted column. The board assigns its
// ID and ordinal when the column is added.
func NewColumn(name string) (*Column, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	return &Column{
		name:  name,
		limit: Unlimited,
		tasks: map[int]*Task{},
		row:   mirrorRow{table: TableColumns},
	}, nil
}

func columnFromEntity(e ColumnEntity, store Mirror) *Column {
	return &Column{
		id:      e.ID,
		name:    e.Name,
		ordinal: e.Ordinal,
		limit:   e.Limit,
		tasks:   map[int]*Task{},
		row:     mirrorRow{store: store, table: TableColumns, key: e.Entity, persisted: true},
	}
}

func (c *Column) ID() int        { return c.id }
func (c *Column) Name() string   { return c.name }
func (c *Column) Ordinal() int   { return c.ordinal }
func (c *Column) Limit() int     { return c.limit }
func (c *Column) Role() Role     { return c.role }
func (c *Column) TaskCount() int { return len(c.tasks) }

// Persisted reports whether the column has a durable row.
func (c *Column) Persisted() bool { return c.row.persisted }

// Tasks returns the column's tasks ordered by ID.
func (c *Column) Tasks() []*Task {
	out := make([]*Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Task returns the task with the given ID.
func (c *Column) Task(id int) (*Task, error) {
	t, ok := c.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: task %d in column %q", ErrNotFound, id, c.name)
	}
	return t, nil
}

// Entity returns a snapshot of the column's durable row.
func (c *Column) Entity() ColumnEntity {
	return ColumnEntity{Entity: c.row.key, ID: c.id, Name: c.name, Ordinal: c.ordinal, Limit: c.limit}
}

func (c *Column) bind(board BoardKey, id int, store Mirror) {
	c.id = id
	c.row.store = store
	c.row.key = ColumnEntityKey(board, id)
}

func (c *Column) persist(ctx context.Context) error {
	return c.row.insert(ctx, c.Entity())
}

func (c *Column) atCapacity(extra int) bool {
	return c.limit != Unlimited && len(c.tasks)+extra > c.limit
}

func (c *Column) addTask(t *Task) error {
	if c.atCapacity(1) {
		return fmt.Errorf("%w: column %q holds %d of %d", ErrColumnAtCapacity, c.name, len(c.tasks), c.limit)
	}
	c.tasks[t.id] = t
	return nil
}

// addTasks is the bulk insert used by RemoveColumn to merge a column's tasks.
func (c *Column) addTasks(tasks []*Task) error {
	if c.atCapacity(len(tasks)) {
		return fmt.Errorf("%w: column %q cannot take %d more tasks (holds %d of %d)", ErrColumnAtCapacity, c.name, len(tasks), len(c.tasks), c.limit)
	}
	for _, t := range tasks {
		c.tasks[t.id] = t
	}
	return nil
}

// put and drop bypass all checks; they exist for compensating actions.
func (c *Column) put(t *Task) { c.tasks[t.id] = t }
func (c *Column) drop(id int) { delete(c.tasks, id) }

// gate returns the task if email is its current assignee.
func (c *Column) gate(email string, id int) (*Task, error) {
	t, err := c.Task(id)
	if err != nil {
		return nil, err
	}
	if t.assignee != email {
		return nil, fmt.Errorf("%w: %s cannot modify task %d", ErrNotAssignee, email, id)
	}
	return t, nil
}

func (c *Column) assignTask(ctx context.Context, email string, id int, assignee string) error {
	t, err := c.gate(email, id)
	if err != nil {
		return err
	}
	return t.setAssignee(ctx, assignee)
}

func (c *Column) updateTaskDueDate(ctx context.Context, email string, id int, due time.Time) error {
	t, err := c.gate(email, id)
	if err != nil {
		return err
	}
	return t.setDueDate(ctx, due)
}

func (c *Column) updateTaskTitle(ctx context.Context, email string, id int, title string) error {
	t, err := c.gate(email, id)
	if err != nil {
		return err
	}
	return t.setTitle(ctx, title)
}

func (c *Column) updateTaskDescription(ctx context.Context, email string, id int, description string) error {
	t, err := c.gate(email, id)
	if err != nil {
		return err
	}
	return t.setDescription(ctx, description)
}

// takeTask removes and returns the task if email is its assignee.
func (c *Column) takeTask(email string, id int) (*Task, error) {
	t, err := c.gate(email, id)
	if err != nil {
		return nil, err
	}
	delete(c.tasks, id)
	return t, nil
}

func (c *Column) setName(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if err := c.row.write(ctx, FieldName, name); err != nil {
		return err
	}
	c.name = name
	return nil
}

func (c *Column) setLimit(ctx context.Context, limit int) error {
	if limit < Unlimited {
		return &RangeError{What: "limit", Value: limit, Min: Unlimited, Max: math.MaxInt32}
	}
	if limit != Unlimited && limit < len(c.tasks) {
		return fmt.Errorf("%w: column %q holds %d tasks, limit %d", ErrLimitBelowCurrentCount, c.name, len(c.tasks), limit)
	}
	if err := c.row.write(ctx, FieldLimit, limit); err != nil {
		return err
	}
	c.limit = limit
	return nil
}

func (c *Column) setOrdinal(ctx context.Context, ordinal int) error {
	if ordinal == c.ordinal && !c.ordinalStale {
		return nil
	}
	if err := c.row.write(ctx, FieldOrdinal, ordinal); err != nil {
		return err
	}
	c.ordinal = ordinal
	c.ordinalStale = false
	return nil
}
