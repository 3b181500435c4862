package domain

import (
	"context"
	"fmt"
)

// Row is a durable mirror row.
type Row interface {
	Table() Table
	Key() Entity
}

// Mirror is the durable store the aggregate writes through to. Implementations
// report an existing row on Insert as ErrPersistenceConflict and every other
// failure as ErrPersistenceUnavailable.
type Mirror interface {
	Insert(ctx context.Context, row Row) error
	Update(ctx context.Context, table Table, key Entity, field string, value any) error
	Delete(ctx context.Context, table Table, key Entity) error
}

// Reader loads mirror rows back into memory.
type Reader interface {
	Boards(ctx context.Context) ([]BoardEntity, error)
	Columns(ctx context.Context, board BoardKey) ([]ColumnEntity, error)
	Tasks(ctx context.Context, board BoardKey) ([]TaskEntity, error)
	Members(ctx context.Context, board BoardKey) ([]MemberEntity, error)
}

// mirrorRow binds an in-memory object to its durable row. Until persisted is
// set, writes only touch memory.
type mirrorRow struct {
	store     Mirror
	table     Table
	key       Entity
	persisted bool
}

// write propagates a field change to the row when the object is persisted.
func (m *mirrorRow) write(ctx context.Context, field string, value any) error {
	if !m.persisted || m.store == nil {
		return nil
	}
	if err := m.store.Update(ctx, m.table, m.key, field, value); err != nil {
		return fmt.Errorf("update %s %s/%s %s: %w", m.table, m.key.PartitionKey, m.key.RowKey, field, err)
	}
	return nil
}

func (m *mirrorRow) insert(ctx context.Context, row Row) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Insert(ctx, row); err != nil {
		return fmt.Errorf("insert %s %s/%s: %w", m.table, m.key.PartitionKey, m.key.RowKey, err)
	}
	m.persisted = true
	return nil
}

func (m *mirrorRow) delete(ctx context.Context) error {
	if !m.persisted || m.store == nil {
		return nil
	}
	if err := m.store.Delete(ctx, m.table, m.key); err != nil {
		return fmt.Errorf("delete %s %s/%s: %w", m.table, m.key.PartitionKey, m.key.RowKey, err)
	}
	m.persisted = false
	return nil
}
