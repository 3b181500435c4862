package domain

import (
	"context"
	"fmt"
)

type injectedFailure struct {
	op    string
	table Table
	field string
	skip  int
}

// fakeMirror keeps rows as field maps so tests can compare the mirror with
// the in-memory aggregate.
type fakeMirror struct {
	rows     map[string]map[string]any
	failures []injectedFailure
	calls    []string
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{rows: map[string]map[string]any{}}
}

func rowID(table Table, key Entity) string {
	return string(table) + "/" + key.PartitionKey + "/" + key.RowKey
}

// failOn makes the matching call fail after skip successful matches. An empty
// field matches every field.
func (m *fakeMirror) failOn(op string, table Table, field string, skip int) {
	m.failures = append(m.failures, injectedFailure{op: op, table: table, field: field, skip: skip})
}

func (m *fakeMirror) injected(op string, table Table, field string) error {
	for i := range m.failures {
		f := &m.failures[i]
		if f.op != op || f.table != table || (f.field != "" && f.field != field) {
			continue
		}
		if f.skip > 0 {
			f.skip--
			return nil
		}
		m.failures = append(m.failures[:i], m.failures[i+1:]...)
		return fmt.Errorf("%w: injected %s failure", ErrPersistenceUnavailable, op)
	}
	return nil
}

func rowFields(row Row) map[string]any {
	switch r := row.(type) {
	case BoardEntity:
		return map[string]any{"Creator": r.Creator, "Name": r.Name, FieldNextTaskID: r.NextTaskID, FieldNextColumnID: r.NextColumnID}
	case ColumnEntity:
		return map[string]any{"ID": r.ID, FieldName: r.Name, FieldOrdinal: r.Ordinal, FieldLimit: r.Limit}
	case TaskEntity:
		return map[string]any{
			"ID":             r.ID,
			FieldColumnID:    r.ColumnID,
			FieldTitle:       r.Title,
			FieldDescription: r.Description,
			"CreationTime":   r.CreationTime,
			FieldDueDate:     r.DueDate,
			FieldAssignee:    r.Assignee,
		}
	case MemberEntity:
		return map[string]any{"Email": r.Email}
	}
	panic(fmt.Sprintf("unexpected row %T", row))
}

func (m *fakeMirror) Insert(_ context.Context, row Row) error {
	m.calls = append(m.calls, "insert "+string(row.Table()))
	if err := m.injected("insert", row.Table(), ""); err != nil {
		return err
	}
	id := rowID(row.Table(), row.Key())
	if _, ok := m.rows[id]; ok {
		return fmt.Errorf("%w: %s", ErrPersistenceConflict, id)
	}
	m.rows[id] = rowFields(row)
	return nil
}

func (m *fakeMirror) Update(_ context.Context, table Table, key Entity, field string, value any) error {
	m.calls = append(m.calls, "update "+string(table)+" "+field)
	if err := m.injected("update", table, field); err != nil {
		return err
	}
	row, ok := m.rows[rowID(table, key)]
	if !ok {
		return fmt.Errorf("%w: %s missing", ErrPersistenceUnavailable, rowID(table, key))
	}
	row[field] = value
	return nil
}

func (m *fakeMirror) Delete(_ context.Context, table Table, key Entity) error {
	m.calls = append(m.calls, "delete "+string(table))
	if err := m.injected("delete", table, ""); err != nil {
		return err
	}
	delete(m.rows, rowID(table, key))
	return nil
}

func (m *fakeMirror) has(table Table, key Entity) bool {
	_, ok := m.rows[rowID(table, key)]
	return ok
}

func (m *fakeMirror) value(table Table, key Entity, field string) any {
	return m.rows[rowID(table, key)][field]
}

func (m *fakeMirror) count(table Table) int {
	n := 0
	for id := range m.rows {
		if len(id) > len(table) && id[:len(table)+1] == string(table)+"/" {
			n++
		}
	}
	return n
}
