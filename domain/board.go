package domain

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// MinColumns is the smallest number of columns a board may have.
const MinColumns = 2

// SeedColumns are the columns of a freshly created board.
var SeedColumns = []string{"backlog", "in progress", "done"}

// Board is an ordered sequence of columns identified by (creator, name). It
// owns task ID allocation, column ordinals and cross-column task movement.
//
// Once persisted, every mutation writes through to the mirror before it is
// considered final; a mutation whose write fails is reverted in memory.
type Board struct {
	key          BoardKey
	columns      []*Column
	nextTaskID   int
	nextColumnID int
	taskCount    int
	store        Mirror
	row          mirrorRow
}

// NewBoard returns an unpersisted board with the seed columns.
func NewBoard(creator, name string, store Mirror) (*Board, error) {
	if creator == "" {
		return nil, &FieldError{Field: "creator", Reason: "is required"}
	}
	if name == "" {
		return nil, &FieldError{Field: "board name", Reason: "is required"}
	}
	b := &Board{
		key:   BoardKey{Creator: creator, Name: name},
		store: store,
	}
	b.row = mirrorRow{store: store, table: TableBoards, key: b.key.Entity()}
	for i, name := range SeedColumns {
		c, err := NewColumn(name)
		if err != nil {
			return nil, err
		}
		c.bind(b.key, b.nextColumnID, store)
		c.ordinal = i
		b.nextColumnID++
		b.columns = append(b.columns, c)
	}
	b.refreshRoles()
	return b, nil
}

func (b *Board) Key() BoardKey    { return b.key }
func (b *Board) Creator() string  { return b.key.Creator }
func (b *Board) Name() string     { return b.key.Name }
func (b *Board) ColumnCount() int { return len(b.columns) }
func (b *Board) TaskCount() int   { return b.taskCount }
func (b *Board) NextTaskID() int  { return b.nextTaskID }
func (b *Board) Persisted() bool  { return b.row.persisted }

// Entity returns a snapshot of the board's durable row.
func (b *Board) Entity() BoardEntity {
	return BoardEntity{
		Entity:       b.key.Entity(),
		Creator:      b.key.Creator,
		Name:         b.key.Name,
		NextTaskID:   b.nextTaskID,
		NextColumnID: b.nextColumnID,
	}
}

// Columns returns the columns in ordinal order.
func (b *Board) Columns() []*Column {
	return append([]*Column(nil), b.columns...)
}

// Column returns the column at ordinal.
func (b *Board) Column(ordinal int) (*Column, error) {
	if err := b.checkOrdinal(ordinal); err != nil {
		return nil, err
	}
	return b.columns[ordinal], nil
}

// ColumnTasks returns the tasks of the column at ordinal.
func (b *Board) ColumnTasks(ordinal int) ([]*Task, error) {
	c, err := b.Column(ordinal)
	if err != nil {
		return nil, err
	}
	return c.Tasks(), nil
}

// Task looks a task up in every column.
func (b *Board) Task(id int) (*Task, error) {
	if _, c := b.findTask(id); c != nil {
		return c.tasks[id], nil
	}
	return nil, fmt.Errorf("%w: task %d on board %s", ErrNotFound, id, b.key)
}

// InProgressTasks returns the tasks of every column except the intake and
// terminal ones, ordered by ID.
func (b *Board) InProgressTasks() []*Task {
	var out []*Task
	for _, c := range b.columns {
		if c.role == RoleNormal {
			out = append(out, c.Tasks()...)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Persist inserts the board row followed by every column and task row. If a
// later insert fails, the rows already inserted are deleted again.
func (b *Board) Persist(ctx context.Context) error {
	if err := b.row.insert(ctx, b.Entity()); err != nil {
		return err
	}
	var u undoLog
	u.push("delete board row", b.row.delete)
	for _, c := range b.columns {
		if err := c.persist(ctx); err != nil {
			u.rollback(ctx)
			return err
		}
		u.push("delete column row", c.row.delete)
		for _, t := range c.Tasks() {
			if err := t.persist(ctx); err != nil {
				u.rollback(ctx)
				return err
			}
			u.push("delete task row", t.row.delete)
		}
	}
	return nil
}

// Delete removes every row of the board, the board row last. If any delete
// fails, the rows already removed are inserted again so the board stays whole.
func (b *Board) Delete(ctx context.Context) error {
	var u undoLog
	for _, c := range b.columns {
		for _, t := range c.Tasks() {
			if err := deleteRow(ctx, &u, &t.row, "restore task row", t.persist); err != nil {
				return err
			}
		}
		if err := deleteRow(ctx, &u, &c.row, "restore column row", c.persist); err != nil {
			return err
		}
	}
	if err := b.row.delete(ctx); err != nil {
		u.rollback(ctx)
		return err
	}
	return nil
}

func deleteRow(ctx context.Context, u *undoLog, row *mirrorRow, name string, restore func(context.Context) error) error {
	persisted := row.persisted
	if err := row.delete(ctx); err != nil {
		u.rollback(ctx)
		return err
	}
	if persisted {
		u.push(name, restore)
	}
	return nil
}

// AddColumn inserts column at ordinal, shifting the columns at or after it to
// the right. Valid ordinals are 0..ColumnCount().
func (b *Board) AddColumn(ctx context.Context, column *Column, ordinal int) error {
	if ordinal < 0 || ordinal > len(b.columns) {
		return &RangeError{What: "column ordinal", Value: ordinal, Min: 0, Max: len(b.columns)}
	}
	id, err := b.allocateColumnID(ctx)
	if err != nil {
		return err
	}
	column.bind(b.key, id, b.store)
	column.ordinal = ordinal

	var u undoLog
	if b.row.persisted {
		if err := column.persist(ctx); err != nil {
			return err
		}
		u.push("delete column row", column.row.delete)
	}
	next := make([]*Column, 0, len(b.columns)+1)
	next = append(next, b.columns[:ordinal]...)
	next = append(next, column)
	next = append(next, b.columns[ordinal:]...)
	if err := b.reorder(ctx, next, &u); err != nil {
		u.rollback(ctx)
		return err
	}
	return nil
}

// RemoveColumn removes the column at ordinal and merges its tasks into its
// left neighbour, or into the next column when ordinal is 0. The merge honours
// the destination's limit: if it cannot take every task, nothing changes.
func (b *Board) RemoveColumn(ctx context.Context, ordinal int) (*Column, error) {
	if err := b.checkOrdinal(ordinal); err != nil {
		return nil, err
	}
	if len(b.columns) <= MinColumns {
		return nil, fmt.Errorf("%w: cannot remove column %q", ErrMinimumColumnsViolated, b.columns[ordinal].name)
	}
	removed := b.columns[ordinal]
	dest := b.columns[max(0, ordinal-1)]
	if ordinal == 0 {
		dest = b.columns[1]
	}
	moving := removed.Tasks()
	if dest.atCapacity(len(moving)) {
		return nil, fmt.Errorf("%w: column %q cannot absorb %d tasks of column %q", ErrColumnAtCapacity, dest.name, len(moving), removed.name)
	}

	var u undoLog
	for _, t := range moving {
		t := t
		prev := t.columnID
		if err := t.advance(ctx, dest.id); err != nil {
			u.rollback(ctx)
			return nil, err
		}
		u.push("restore task column", func(ctx context.Context) error {
			err := t.advance(ctx, prev)
			t.columnID = prev
			return err
		})
	}
	next := make([]*Column, 0, len(b.columns)-1)
	next = append(next, b.columns[:ordinal]...)
	next = append(next, b.columns[ordinal+1:]...)
	if err := b.reorder(ctx, next, &u); err != nil {
		u.rollback(ctx)
		return nil, err
	}
	if err := removed.row.delete(ctx); err != nil {
		u.rollback(ctx)
		return nil, err
	}
	u.push("restore column row", removed.persist)
	if err := dest.addTasks(moving); err != nil {
		u.rollback(ctx)
		return nil, err
	}
	removed.tasks = map[int]*Task{}
	return removed, nil
}

// MoveColumn moves the column at ordinal by shift positions. Only empty
// columns may be moved.
func (b *Board) MoveColumn(ctx context.Context, ordinal, shift int) error {
	if err := b.checkOrdinal(ordinal); err != nil {
		return err
	}
	target := ordinal + shift
	if target < 0 || target >= len(b.columns) {
		return &RangeError{What: "target ordinal", Value: target, Min: 0, Max: len(b.columns) - 1}
	}
	moved := b.columns[ordinal]
	if moved.TaskCount() > 0 {
		return fmt.Errorf("%w: column %q holds %d tasks", ErrNotEmpty, moved.name, moved.TaskCount())
	}
	if shift == 0 {
		return nil
	}
	rest := make([]*Column, 0, len(b.columns)-1)
	rest = append(rest, b.columns[:ordinal]...)
	rest = append(rest, b.columns[ordinal+1:]...)
	next := make([]*Column, 0, len(b.columns))
	next = append(next, rest[:target]...)
	next = append(next, moved)
	next = append(next, rest[target:]...)

	var u undoLog
	if err := b.reorder(ctx, next, &u); err != nil {
		u.rollback(ctx)
		return err
	}
	return nil
}

// LimitColumn sets the capacity of the column at ordinal; Unlimited removes it.
func (b *Board) LimitColumn(ctx context.Context, ordinal, limit int) error {
	c, err := b.Column(ordinal)
	if err != nil {
		return err
	}
	return c.setLimit(ctx, limit)
}

// RenameColumn renames the column at ordinal.
func (b *Board) RenameColumn(ctx context.Context, ordinal int, name string) error {
	c, err := b.Column(ordinal)
	if err != nil {
		return err
	}
	return c.setName(ctx, name)
}

// AllocateTaskID reserves the next task ID. IDs are never reused, even after
// the task holding one is removed.
func (b *Board) AllocateTaskID(ctx context.Context) (int, error) {
	id := b.nextTaskID
	if err := b.row.write(ctx, FieldNextTaskID, id+1); err != nil {
		return 0, err
	}
	b.nextTaskID = id + 1
	return id, nil
}

func (b *Board) allocateColumnID(ctx context.Context) (int, error) {
	id := b.nextColumnID
	if err := b.row.write(ctx, FieldNextColumnID, id+1); err != nil {
		return 0, err
	}
	b.nextColumnID = id + 1
	return id, nil
}

// CreateTask validates a new task, allocates its ID and adds it to the intake
// column.
func (b *Board) CreateTask(ctx context.Context, created time.Time, title, description string, due time.Time, assignee string) (*Task, error) {
	t, err := NewTask(b.nextTaskID, created, title, description, due, assignee)
	if err != nil {
		return nil, err
	}
	if intake := b.columns[0]; intake.atCapacity(1) {
		return nil, fmt.Errorf("%w: column %q holds %d of %d", ErrColumnAtCapacity, intake.name, intake.TaskCount(), intake.limit)
	}
	id, err := b.AllocateTaskID(ctx)
	if err != nil {
		return nil, err
	}
	t.id = id
	if err := b.AddTask(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// AddTask places task in the intake column and persists it. The task's ID
// must come from AllocateTaskID.
func (b *Board) AddTask(ctx context.Context, task *Task) error {
	if task.id < 0 || task.id >= b.nextTaskID {
		return &RangeError{What: "task id", Value: task.id, Min: 0, Max: b.nextTaskID - 1}
	}
	if _, c := b.findTask(task.id); c != nil {
		return &FieldError{Field: "task id", Reason: fmt.Sprintf("%d is already in use", task.id)}
	}
	intake := b.columns[0]
	if err := intake.addTask(task); err != nil {
		return err
	}
	task.bind(b.key, b.store)
	task.columnID = intake.id
	if b.row.persisted {
		if err := task.persist(ctx); err != nil {
			intake.drop(task.id)
			return err
		}
	}
	b.taskCount++
	return nil
}

// AdvanceTask moves a task from the column at ordinal to the next one. If the
// destination is full or the move cannot be persisted, the task stays where it
// was.
func (b *Board) AdvanceTask(ctx context.Context, email string, ordinal, id int) error {
	if err := b.checkOrdinal(ordinal); err != nil {
		return err
	}
	src := b.columns[ordinal]
	if src.role == RoleTerminal {
		return fmt.Errorf("%w: cannot advance task %d past column %q", ErrTerminalColumn, id, src.name)
	}
	t, err := src.takeTask(email, id)
	if err != nil {
		return err
	}
	dst := b.columns[ordinal+1]
	if err := dst.addTask(t); err != nil {
		src.put(t)
		return err
	}
	if err := t.advance(ctx, dst.id); err != nil {
		dst.drop(t.id)
		src.put(t)
		return err
	}
	return nil
}

// AssignTask hands a task to assignee. Only the current assignee may do so.
func (b *Board) AssignTask(ctx context.Context, email string, ordinal, id int, assignee string) error {
	c, err := b.mutableColumn(ordinal)
	if err != nil {
		return err
	}
	return c.assignTask(ctx, email, id, assignee)
}

func (b *Board) UpdateTaskDueDate(ctx context.Context, email string, ordinal, id int, due time.Time) error {
	c, err := b.mutableColumn(ordinal)
	if err != nil {
		return err
	}
	return c.updateTaskDueDate(ctx, email, id, due)
}

func (b *Board) UpdateTaskTitle(ctx context.Context, email string, ordinal, id int, title string) error {
	c, err := b.mutableColumn(ordinal)
	if err != nil {
		return err
	}
	return c.updateTaskTitle(ctx, email, id, title)
}

func (b *Board) UpdateTaskDescription(ctx context.Context, email string, ordinal, id int, description string) error {
	c, err := b.mutableColumn(ordinal)
	if err != nil {
		return err
	}
	return c.updateTaskDescription(ctx, email, id, description)
}

// RemoveTask removes a task from the column at ordinal and deletes its row.
func (b *Board) RemoveTask(ctx context.Context, email string, ordinal, id int) (*Task, error) {
	c, err := b.Column(ordinal)
	if err != nil {
		return nil, err
	}
	t, err := c.takeTask(email, id)
	if err != nil {
		return nil, err
	}
	if err := t.row.delete(ctx); err != nil {
		c.put(t)
		return nil, err
	}
	b.taskCount--
	return t, nil
}

// RemoveTaskAnywhere removes a task from whichever column holds it.
func (b *Board) RemoveTaskAnywhere(ctx context.Context, email string, id int) (*Task, error) {
	ordinal, c := b.findTask(id)
	if c == nil {
		return nil, fmt.Errorf("%w: task %d on board %s", ErrNotFound, id, b.key)
	}
	return b.RemoveTask(ctx, email, ordinal, id)
}

func (b *Board) findTask(id int) (int, *Column) {
	for i, c := range b.columns {
		if _, ok := c.tasks[id]; ok {
			return i, c
		}
	}
	return -1, nil
}

func (b *Board) checkOrdinal(ordinal int) error {
	if ordinal < 0 || ordinal >= len(b.columns) {
		return &RangeError{What: "column ordinal", Value: ordinal, Min: 0, Max: len(b.columns) - 1}
	}
	return nil
}

// mutableColumn returns the column at ordinal unless it is the terminal one.
func (b *Board) mutableColumn(ordinal int) (*Column, error) {
	c, err := b.Column(ordinal)
	if err != nil {
		return nil, err
	}
	if c.role == RoleTerminal {
		return nil, fmt.Errorf("%w: tasks in column %q cannot be changed", ErrTerminalColumn, c.name)
	}
	return c, nil
}

// reorder installs next as the column order, writing each changed ordinal
// through. Compensations for every applied step are pushed onto u.
func (b *Board) reorder(ctx context.Context, next []*Column, u *undoLog) error {
	for i, c := range next {
		c := c
		prev := c.ordinal
		if prev == i && !c.ordinalStale {
			continue
		}
		if err := c.setOrdinal(ctx, i); err != nil {
			return err
		}
		u.push("restore column ordinal", func(ctx context.Context) error {
			err := c.setOrdinal(ctx, prev)
			c.ordinal = prev
			return err
		})
	}
	prev := b.columns
	b.columns = next
	b.refreshRoles()
	u.push("restore column order", func(context.Context) error {
		b.columns = prev
		b.refreshRoles()
		return nil
	})
	return nil
}

func (b *Board) refreshRoles() {
	last := len(b.columns) - 1
	for i, c := range b.columns {
		switch i {
		case 0:
			c.role = RoleIntake
		case last:
			c.role = RoleTerminal
		default:
			c.role = RoleNormal
		}
	}
}
