package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"prism-kanban/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS boards (
	pk             TEXT NOT NULL,
	rk             TEXT NOT NULL,
	creator        TEXT NOT NULL,
	name           TEXT NOT NULL,
	next_task_id   INTEGER NOT NULL DEFAULT 0,
	next_column_id INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (pk, rk)
);
CREATE TABLE IF NOT EXISTS board_columns (
	pk         TEXT NOT NULL,
	rk         TEXT NOT NULL,
	id         INTEGER NOT NULL,
	name       TEXT NOT NULL,
	ordinal    INTEGER NOT NULL,
	task_limit INTEGER NOT NULL DEFAULT -1,
	PRIMARY KEY (pk, rk)
);
CREATE TABLE IF NOT EXISTS tasks (
	pk            TEXT NOT NULL,
	rk            TEXT NOT NULL,
	id            INTEGER NOT NULL,
	column_id     INTEGER NOT NULL,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	creation_time TEXT NOT NULL,
	due_date      TEXT NOT NULL,
	assignee      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (pk, rk)
);
CREATE TABLE IF NOT EXISTS members (
	pk    TEXT NOT NULL,
	rk    TEXT NOT NULL,
	email TEXT NOT NULL,
	PRIMARY KEY (pk, rk)
);
`

// sqliteTables maps mirror tables to SQL tables.
var sqliteTables = map[domain.Table]string{
	domain.TableBoards:  "boards",
	domain.TableColumns: "board_columns",
	domain.TableTasks:   "tasks",
	domain.TableMembers: "members",
}

// sqliteColumns lists the updatable fields of each table.
var sqliteColumns = map[domain.Table]map[string]string{
	domain.TableBoards: {
		domain.FieldNextTaskID:   "next_task_id",
		domain.FieldNextColumnID: "next_column_id",
	},
	domain.TableColumns: {
		domain.FieldName:    "name",
		domain.FieldOrdinal: "ordinal",
		domain.FieldLimit:   "task_limit",
	},
	domain.TableTasks: {
		domain.FieldColumnID:    "column_id",
		domain.FieldTitle:       "title",
		domain.FieldDescription: "description",
		domain.FieldDueDate:     "due_date",
		domain.FieldAssignee:    "assignee",
	},
}

// SQLite mirrors boards into a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and ensures the schema
// exists. The caller is responsible for calling Close.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLite) Close() error { return s.db.Close() }

// Insert adds a new row. An existing row is reported as ErrPersistenceConflict.
func (s *SQLite) Insert(ctx context.Context, row domain.Row) error {
	var (
		res sql.Result
		err error
	)
	switch r := row.(type) {
	case domain.BoardEntity:
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO boards (pk, rk, creator, name, next_task_id, next_column_id)
			VALUES (?,?,?,?,?,?) ON CONFLICT DO NOTHING`,
			r.PartitionKey, r.RowKey, r.Creator, r.Name, r.NextTaskID, r.NextColumnID)
	case domain.ColumnEntity:
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO board_columns (pk, rk, id, name, ordinal, task_limit)
			VALUES (?,?,?,?,?,?) ON CONFLICT DO NOTHING`,
			r.PartitionKey, r.RowKey, r.ID, r.Name, r.Ordinal, r.Limit)
	case domain.TaskEntity:
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO tasks (pk, rk, id, column_id, title, description, creation_time, due_date, assignee)
			VALUES (?,?,?,?,?,?,?,?,?) ON CONFLICT DO NOTHING`,
			r.PartitionKey, r.RowKey, r.ID, r.ColumnID, r.Title, r.Description,
			formatTime(r.CreationTime), formatTime(r.DueDate), r.Assignee)
	case domain.MemberEntity:
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO members (pk, rk, email) VALUES (?,?,?) ON CONFLICT DO NOTHING`,
			r.PartitionKey, r.RowKey, r.Email)
	default:
		return fmt.Errorf("%w: unsupported row type %T", domain.ErrPersistenceUnavailable, row)
	}
	if err != nil {
		return fmt.Errorf("%w: insert %s: %w", domain.ErrPersistenceUnavailable, row.Table(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceUnavailable, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s/%s", domain.ErrPersistenceConflict, row.Table(), row.Key().PartitionKey, row.Key().RowKey)
	}
	return nil
}

// Update sets a single field of an existing row.
func (s *SQLite) Update(ctx context.Context, table domain.Table, key domain.Entity, field string, value any) error {
	name, ok := sqliteTables[table]
	if !ok {
		return fmt.Errorf("%w: unknown table %q", domain.ErrPersistenceUnavailable, table)
	}
	col, ok := sqliteColumns[table][field]
	if !ok {
		return fmt.Errorf("%w: %s has no field %q", domain.ErrPersistenceUnavailable, table, field)
	}
	if t, ok := value.(time.Time); ok {
		value = formatTime(t)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE `+name+` SET `+col+`=? WHERE pk=? AND rk=?`, value, key.PartitionKey, key.RowKey)
	if err != nil {
		return fmt.Errorf("%w: update %s: %w", domain.ErrPersistenceUnavailable, table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceUnavailable, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s/%s not found", domain.ErrPersistenceUnavailable, table, key.PartitionKey, key.RowKey)
	}
	return nil
}

// Delete removes a row. Deleting a missing row succeeds.
func (s *SQLite) Delete(ctx context.Context, table domain.Table, key domain.Entity) error {
	name, ok := sqliteTables[table]
	if !ok {
		return fmt.Errorf("%w: unknown table %q", domain.ErrPersistenceUnavailable, table)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+name+` WHERE pk=? AND rk=?`, key.PartitionKey, key.RowKey); err != nil {
		return fmt.Errorf("%w: delete %s: %w", domain.ErrPersistenceUnavailable, table, err)
	}
	return nil
}

// Boards lists every board row.
func (s *SQLite) Boards(ctx context.Context) ([]domain.BoardEntity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pk, rk, creator, name, next_task_id, next_column_id FROM boards ORDER BY pk, rk`)
	if err != nil {
		return nil, fmt.Errorf("%w: list boards: %w", domain.ErrPersistenceUnavailable, err)
	}
	defer rows.Close()
	out := []domain.BoardEntity{}
	for rows.Next() {
		var e domain.BoardEntity
		if err := rows.Scan(&e.PartitionKey, &e.RowKey, &e.Creator, &e.Name, &e.NextTaskID, &e.NextColumnID); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Columns lists the column rows of a board.
func (s *SQLite) Columns(ctx context.Context, board domain.BoardKey) ([]domain.ColumnEntity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pk, rk, id, name, ordinal, task_limit FROM board_columns WHERE pk=? ORDER BY ordinal, id`, board.Partition())
	if err != nil {
		return nil, fmt.Errorf("%w: list columns: %w", domain.ErrPersistenceUnavailable, err)
	}
	defer rows.Close()
	out := []domain.ColumnEntity{}
	for rows.Next() {
		var e domain.ColumnEntity
		if err := rows.Scan(&e.PartitionKey, &e.RowKey, &e.ID, &e.Name, &e.Ordinal, &e.Limit); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Tasks lists the task rows of a board.
func (s *SQLite) Tasks(ctx context.Context, board domain.BoardKey) ([]domain.TaskEntity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pk, rk, id, column_id, title, description, creation_time, due_date, assignee
		FROM tasks WHERE pk=? ORDER BY id`, board.Partition())
	if err != nil {
		return nil, fmt.Errorf("%w: list tasks: %w", domain.ErrPersistenceUnavailable, err)
	}
	defer rows.Close()
	out := []domain.TaskEntity{}
	for rows.Next() {
		var (
			e            domain.TaskEntity
			created, due string
		)
		if err := rows.Scan(&e.PartitionKey, &e.RowKey, &e.ID, &e.ColumnID, &e.Title, &e.Description, &created, &due, &e.Assignee); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if e.CreationTime, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse creation time of task %d: %w", e.ID, err)
		}
		if e.DueDate, err = time.Parse(time.RFC3339Nano, due); err != nil {
			return nil, fmt.Errorf("parse due date of task %d: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Members lists the membership rows of a board.
func (s *SQLite) Members(ctx context.Context, board domain.BoardKey) ([]domain.MemberEntity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pk, rk, email FROM members WHERE pk=? ORDER BY rk`, board.Partition())
	if err != nil {
		return nil, fmt.Errorf("%w: list members: %w", domain.ErrPersistenceUnavailable, err)
	}
	defer rows.Close()
	out := []domain.MemberEntity{}
	for rows.Next() {
		var e domain.MemberEntity
		if err := rows.Scan(&e.PartitionKey, &e.RowKey, &e.Email); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
