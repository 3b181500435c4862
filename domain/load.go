package domain

import (
	"context"
	"fmt"
	"sort"
)

// LoadBoard rebuilds a persisted board from its mirror rows. Columns are
// ordered by their stored ordinal and renumbered contiguously in memory; call
// RepairOrdinals to write the new numbering back.
func LoadBoard(row BoardEntity, columns []ColumnEntity, tasks []TaskEntity, store Mirror) (*Board, error) {
	key := row.Board()
	if len(columns) < MinColumns {
		return nil, fmt.Errorf("load board %s: %w: found %d columns", key, ErrMinimumColumnsViolated, len(columns))
	}
	sorted := append([]ColumnEntity(nil), columns...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Ordinal != sorted[j].Ordinal {
			return sorted[i].Ordinal < sorted[j].Ordinal
		}
		return sorted[i].ID < sorted[j].ID
	})

	b := &Board{
		key:          key,
		store:        store,
		nextTaskID:   row.NextTaskID,
		nextColumnID: row.NextColumnID,
		row:          mirrorRow{store: store, table: TableBoards, key: row.Entity, persisted: true},
	}
	byID := make(map[int]*Column, len(sorted))
	for i, e := range sorted {
		c := columnFromEntity(e, store)
		c.ordinalStale = c.ordinal != i
		c.ordinal = i
		byID[c.id] = c
		b.columns = append(b.columns, c)
		b.nextColumnID = max(b.nextColumnID, c.id+1)
	}
	b.refreshRoles()

	seen := make(map[int]bool, len(tasks))
	for _, e := range tasks {
		if seen[e.ID] {
			return nil, fmt.Errorf("load board %s: duplicate task %d", key, e.ID)
		}
		seen[e.ID] = true
		c, ok := byID[e.ColumnID]
		if !ok {
			return nil, fmt.Errorf("load board %s: %w: column %d of task %d", key, ErrNotFound, e.ColumnID, e.ID)
		}
		c.put(taskFromEntity(e, store))
		b.nextTaskID = max(b.nextTaskID, e.ID+1)
	}
	b.taskCount = len(tasks)
	return b, nil
}

// RepairOrdinals writes back the ordinals LoadBoard renumbered. It returns the
// number of columns updated.
func (b *Board) RepairOrdinals(ctx context.Context) (int, error) {
	n := 0
	for _, c := range b.columns {
		if !c.ordinalStale {
			continue
		}
		if err := c.setOrdinal(ctx, c.ordinal); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
