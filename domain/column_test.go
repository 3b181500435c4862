package domain

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestTask(t *testing.T, id int, assignee string) *Task {
	t.Helper()
	created := time.Now()
	task, err := NewTask(id, created, "task", "", created.Add(24*time.Hour), assignee)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	return task
}

func TestNewColumn(t *testing.T) {
	if _, err := NewColumn(""); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	c, err := NewColumn("review")
	if err != nil {
		t.Fatalf("new column: %v", err)
	}
	if c.Limit() != Unlimited || c.TaskCount() != 0 || c.Persisted() {
		t.Fatalf("unexpected column: %#v", c.Entity())
	}
}

func TestColumnCapacity(t *testing.T) {
	ctx := context.Background()
	c, _ := NewColumn("doing")
	if err := c.setLimit(ctx, 1); err != nil {
		t.Fatalf("set limit: %v", err)
	}
	if err := c.addTask(newTestTask(t, 0, "")); err != nil {
		t.Fatalf("add first task: %v", err)
	}
	if err := c.addTask(newTestTask(t, 1, "")); !errors.Is(err, ErrColumnAtCapacity) {
		t.Fatalf("expected ErrColumnAtCapacity, got %v", err)
	}
	if err := c.addTasks([]*Task{newTestTask(t, 2, "")}); !errors.Is(err, ErrColumnAtCapacity) {
		t.Fatalf("expected ErrColumnAtCapacity on bulk add, got %v", err)
	}
	if c.TaskCount() != 1 {
		t.Fatalf("expected 1 task, got %d", c.TaskCount())
	}
	if err := c.setLimit(ctx, Unlimited); err != nil {
		t.Fatalf("clear limit: %v", err)
	}
	if err := c.addTasks([]*Task{newTestTask(t, 1, ""), newTestTask(t, 2, "")}); err != nil {
		t.Fatalf("bulk add: %v", err)
	}
	if c.TaskCount() != 3 {
		t.Fatalf("expected 3 tasks, got %d", c.TaskCount())
	}
}

func TestColumnSetLimit(t *testing.T) {
	ctx := context.Background()
	c, _ := NewColumn("doing")
	_ = c.addTask(newTestTask(t, 0, ""))

	var re *RangeError
	if err := c.setLimit(ctx, -2); !errors.As(err, &re) || !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected RangeError, got %v", err)
	}
	if err := c.setLimit(ctx, 0); !errors.Is(err, ErrLimitBelowCurrentCount) {
		t.Fatalf("expected ErrLimitBelowCurrentCount, got %v", err)
	}
	if err := c.setLimit(ctx, 1); err != nil {
		t.Fatalf("limit equal to count: %v", err)
	}
	if c.Limit() != 1 {
		t.Fatalf("limit = %d", c.Limit())
	}
}

func TestColumnGate(t *testing.T) {
	ctx := context.Background()
	c, _ := NewColumn("doing")
	_ = c.addTask(newTestTask(t, 4, "alice@example.com"))

	if err := c.updateTaskTitle(ctx, "bob@example.com", 4, "mine"); !errors.Is(err, ErrNotAssignee) {
		t.Fatalf("expected ErrNotAssignee, got %v", err)
	}
	if err := c.updateTaskTitle(ctx, "alice@example.com", 9, "mine"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := c.assignTask(ctx, "alice@example.com", 4, "bob@example.com"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := c.takeTask("alice@example.com", 4); !errors.Is(err, ErrNotAssignee) {
		t.Fatalf("expected previous assignee to be rejected, got %v", err)
	}
	task, err := c.takeTask("bob@example.com", 4)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if task.ID() != 4 || c.TaskCount() != 0 {
		t.Fatalf("unexpected state after take: task %d, count %d", task.ID(), c.TaskCount())
	}
}

func TestColumnRename(t *testing.T) {
	c, _ := NewColumn("doing")
	if err := c.setName(context.Background(), ""); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if err := c.setName(context.Background(), "review"); err != nil || c.Name() != "review" {
		t.Fatalf("rename: %v (name %q)", err, c.Name())
	}
}

func TestRoleString(t *testing.T) {
	for role, want := range map[Role]string{RoleIntake: "intake", RoleNormal: "normal", RoleTerminal: "terminal"} {
		if got := role.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", role, got, want)
		}
	}
}
