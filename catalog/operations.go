package catalog

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"prism-kanban/domain"
)

// AddColumn inserts a new column named columnName at ordinal.
func (c *Catalog) AddColumn(ctx context.Context, creator, name string, ordinal int, columnName string) (domain.ColumnEntity, error) {
	var out domain.ColumnEntity
	fields := log.Fields{"ordinal": ordinal, "column": columnName}
	err := c.write(ctx, "add column", creator, name, fields, func(s Session, e *entry) error {
		col, err := domain.NewColumn(columnName)
		if err != nil {
			return err
		}
		if err := e.board.AddColumn(ctx, col, ordinal); err != nil {
			return err
		}
		out = col.Entity()
		c.publish(ctx, s, e.board.Key(), "column.added", map[string]any{"column": col.ID(), "ordinal": ordinal, "name": columnName})
		return nil
	})
	return out, err
}

// RemoveColumn removes the column at ordinal, merging its tasks into a neighbour.
func (c *Catalog) RemoveColumn(ctx context.Context, creator, name string, ordinal int) error {
	return c.write(ctx, "remove column", creator, name, log.Fields{"ordinal": ordinal}, func(s Session, e *entry) error {
		col, err := e.board.RemoveColumn(ctx, ordinal)
		if err != nil {
			return err
		}
		c.publish(ctx, s, e.board.Key(), "column.removed", map[string]any{"column": col.ID(), "ordinal": ordinal})
		return nil
	})
}

// MoveColumn shifts the empty column at ordinal by shift positions.
func (c *Catalog) MoveColumn(ctx context.Context, creator, name string, ordinal, shift int) error {
	return c.write(ctx, "move column", creator, name, log.Fields{"ordinal": ordinal, "shift": shift}, func(s Session, e *entry) error {
		if err := e.board.MoveColumn(ctx, ordinal, shift); err != nil {
			return err
		}
		c.publish(ctx, s, e.board.Key(), "column.moved", map[string]any{"ordinal": ordinal, "shift": shift})
		return nil
	})
}

func (c *Catalog) RenameColumn(ctx context.Context, creator, name string, ordinal int, columnName string) error {
	return c.write(ctx, "rename column", creator, name, log.Fields{"ordinal": ordinal, "column": columnName}, func(s Session, e *entry) error {
		if err := e.board.RenameColumn(ctx, ordinal, columnName); err != nil {
			return err
		}
		c.publish(ctx, s, e.board.Key(), "column.renamed", map[string]any{"ordinal": ordinal, "name": columnName})
		return nil
	})
}

func (c *Catalog) LimitColumn(ctx context.Context, creator, name string, ordinal, limit int) error {
	return c.write(ctx, "limit column", creator, name, log.Fields{"ordinal": ordinal, "limit": limit}, func(s Session, e *entry) error {
		if err := e.board.LimitColumn(ctx, ordinal, limit); err != nil {
			return err
		}
		c.publish(ctx, s, e.board.Key(), "column.limited", map[string]any{"ordinal": ordinal, "limit": limit})
		return nil
	})
}

// Column returns a snapshot of the column at ordinal.
func (c *Catalog) Column(ctx context.Context, creator, name string, ordinal int) (domain.ColumnEntity, error) {
	var out domain.ColumnEntity
	err := c.read(ctx, "get column", creator, name, log.Fields{"ordinal": ordinal}, func(_ Session, e *entry) error {
		col, err := e.board.Column(ordinal)
		if err != nil {
			return err
		}
		out = col.Entity()
		return nil
	})
	return out, err
}

// Columns returns snapshots of every column in ordinal order.
func (c *Catalog) Columns(ctx context.Context, creator, name string) ([]domain.ColumnEntity, error) {
	var out []domain.ColumnEntity
	err := c.read(ctx, "get columns", creator, name, nil, func(_ Session, e *entry) error {
		for _, col := range e.board.Columns() {
			out = append(out, col.Entity())
		}
		return nil
	})
	return out, err
}

// ColumnTasks returns snapshots of the tasks in the column at ordinal.
func (c *Catalog) ColumnTasks(ctx context.Context, creator, name string, ordinal int) ([]domain.TaskEntity, error) {
	var out []domain.TaskEntity
	err := c.read(ctx, "get column tasks", creator, name, log.Fields{"ordinal": ordinal}, func(_ Session, e *entry) error {
		tasks, err := e.board.ColumnTasks(ordinal)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			out = append(out, t.Entity())
		}
		return nil
	})
	return out, err
}

// AddTask creates a task assigned to the caller in the board's intake column.
func (c *Catalog) AddTask(ctx context.Context, creator, name, title, description string, due time.Time) (domain.TaskEntity, error) {
	var out domain.TaskEntity
	err := c.write(ctx, "add task", creator, name, log.Fields{"title": title}, func(s Session, e *entry) error {
		t, err := e.board.CreateTask(ctx, c.now(), title, description, due, s.Email)
		if err != nil {
			return err
		}
		out = t.Entity()
		c.publish(ctx, s, e.board.Key(), "task.added", map[string]any{"task": t.ID()})
		return nil
	})
	return out, err
}

// AssignTask hands a task to another member of the board.
func (c *Catalog) AssignTask(ctx context.Context, creator, name string, ordinal, id int, assignee string) error {
	fields := log.Fields{"ordinal": ordinal, "task": id, "assignee": assignee}
	return c.write(ctx, "assign task", creator, name, fields, func(s Session, e *entry) error {
		if !e.members[assignee] {
			return fmt.Errorf("%w: assignee %s on %s", ErrNotMember, assignee, e.board.Key())
		}
		if err := e.board.AssignTask(ctx, s.Email, ordinal, id, assignee); err != nil {
			return err
		}
		c.publish(ctx, s, e.board.Key(), "task.assigned", map[string]any{"task": id, "assignee": assignee})
		return nil
	})
}

func (c *Catalog) UpdateTaskDueDate(ctx context.Context, creator, name string, ordinal, id int, due time.Time) error {
	return c.write(ctx, "update task due date", creator, name, log.Fields{"ordinal": ordinal, "task": id}, func(s Session, e *entry) error {
		if err := e.board.UpdateTaskDueDate(ctx, s.Email, ordinal, id, due); err != nil {
			return err
		}
		c.publish(ctx, s, e.board.Key(), "task.updated", map[string]any{"task": id, "field": domain.FieldDueDate})
		return nil
	})
}

func (c *Catalog) UpdateTaskTitle(ctx context.Context, creator, name string, ordinal, id int, title string) error {
	return c.write(ctx, "update task title", creator, name, log.Fields{"ordinal": ordinal, "task": id}, func(s Session, e *entry) error {
		if err := e.board.UpdateTaskTitle(ctx, s.Email, ordinal, id, title); err != nil {
			return err
		}
		c.publish(ctx, s, e.board.Key(), "task.updated", map[string]any{"task": id, "field": domain.FieldTitle})
		return nil
	})
}

func (c *Catalog) UpdateTaskDescription(ctx context.Context, creator, name string, ordinal, id int, description string) error {
	return c.write(ctx, "update task description", creator, name, log.Fields{"ordinal": ordinal, "task": id}, func(s Session, e *entry) error {
		if err := e.board.UpdateTaskDescription(ctx, s.Email, ordinal, id, description); err != nil {
			return err
		}
		c.publish(ctx, s, e.board.Key(), "task.updated", map[string]any{"task": id, "field": domain.FieldDescription})
		return nil
	})
}

// AdvanceTask moves a task from the column at ordinal to the next column.
func (c *Catalog) AdvanceTask(ctx context.Context, creator, name string, ordinal, id int) error {
	return c.write(ctx, "advance task", creator, name, log.Fields{"ordinal": ordinal, "task": id}, func(s Session, e *entry) error {
		if err := e.board.AdvanceTask(ctx, s.Email, ordinal, id); err != nil {
			return err
		}
		c.publish(ctx, s, e.board.Key(), "task.advanced", map[string]any{"task": id, "from": ordinal})
		return nil
	})
}

// RemoveTask deletes a task from the column at ordinal.
func (c *Catalog) RemoveTask(ctx context.Context, creator, name string, ordinal, id int) error {
	return c.write(ctx, "remove task", creator, name, log.Fields{"ordinal": ordinal, "task": id}, func(s Session, e *entry) error {
		if _, err := e.board.RemoveTask(ctx, s.Email, ordinal, id); err != nil {
			return err
		}
		c.publish(ctx, s, e.board.Key(), "task.removed", map[string]any{"task": id})
		return nil
	})
}

// RemoveTaskAnywhere deletes a task from whichever column holds it.
func (c *Catalog) RemoveTaskAnywhere(ctx context.Context, creator, name string, id int) error {
	return c.write(ctx, "remove task", creator, name, log.Fields{"task": id}, func(s Session, e *entry) error {
		if _, err := e.board.RemoveTaskAnywhere(ctx, s.Email, id); err != nil {
			return err
		}
		c.publish(ctx, s, e.board.Key(), "task.removed", map[string]any{"task": id})
		return nil
	})
}

// Task returns a snapshot of a task wherever it sits on the board.
func (c *Catalog) Task(ctx context.Context, creator, name string, id int) (domain.TaskEntity, error) {
	var out domain.TaskEntity
	err := c.read(ctx, "get task", creator, name, log.Fields{"task": id}, func(_ Session, e *entry) error {
		t, err := e.board.Task(id)
		if err != nil {
			return err
		}
		out = t.Entity()
		return nil
	})
	return out, err
}
