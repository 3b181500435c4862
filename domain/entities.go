package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Table names a family of mirror rows.
type Table string

const (
	TableBoards  Table = "boards"
	TableColumns Table = "columns"
	TableTasks   Table = "tasks"
	TableMembers Table = "members"
)

// Entity represents base table entity keys.
type Entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

const (
	EdmInt32    = "Edm.Int32"
	EdmDateTime = "Edm.DateTime"
)

// Mirror field names.
const (
	FieldName         = "Name"
	FieldOrdinal      = "Ordinal"
	FieldLimit        = "Limit"
	FieldTitle        = "Title"
	FieldDescription  = "Description"
	FieldDueDate      = "DueDate"
	FieldAssignee     = "Assignee"
	FieldColumnID     = "ColumnID"
	FieldNextTaskID   = "NextTaskID"
	FieldNextColumnID = "NextColumnID"
)

// BoardKey identifies a board by its creator and name.
type BoardKey struct {
	Creator string
	Name    string
}

func (k BoardKey) String() string { return k.Creator + ":" + k.Name }

// Partition is the partition key shared by every row owned by the board.
func (k BoardKey) Partition() string {
	return escapeKey(k.Creator) + ":" + escapeKey(k.Name)
}

// Entity returns the board row key.
func (k BoardKey) Entity() Entity {
	return Entity{PartitionKey: escapeKey(k.Creator), RowKey: escapeKey(k.Name)}
}

// escapeKey path-escapes s and also encodes ':', the partition separator.
func escapeKey(s string) string {
	return strings.ReplaceAll(url.PathEscape(s), ":", "%3A")
}

func idRowKey(id int) string { return fmt.Sprintf("%010d", id) }

// ColumnEntityKey returns the mirror key of a column.
func ColumnEntityKey(board BoardKey, id int) Entity {
	return Entity{PartitionKey: board.Partition(), RowKey: idRowKey(id)}
}

// TaskEntityKey returns the mirror key of a task.
func TaskEntityKey(board BoardKey, id int) Entity {
	return Entity{PartitionKey: board.Partition(), RowKey: idRowKey(id)}
}

// MemberEntityKey returns the mirror key of a board membership.
func MemberEntityKey(board BoardKey, email string) Entity {
	return Entity{PartitionKey: board.Partition(), RowKey: escapeKey(email)}
}

// BoardEntity is the durable row of a board.
type BoardEntity struct {
	Entity
	Creator      string `json:"Creator"`
	Name         string `json:"Name"`
	NextTaskID   int    `json:"NextTaskID"`
	NextColumnID int    `json:"NextColumnID"`
}

func (BoardEntity) Table() Table      { return TableBoards }
func (e BoardEntity) Key() Entity     { return e.Entity }
func (e BoardEntity) Board() BoardKey { return BoardKey{Creator: e.Creator, Name: e.Name} }

// ColumnEntity is the durable row of a column.
type ColumnEntity struct {
	Entity
	ID      int    `json:"ID"`
	Name    string `json:"Name"`
	Ordinal int    `json:"Ordinal"`
	Limit   int    `json:"Limit"`
}

func (ColumnEntity) Table() Table  { return TableColumns }
func (e ColumnEntity) Key() Entity { return e.Entity }

// TaskEntity is the durable row of a task.
type TaskEntity struct {
	Entity
	ID           int       `json:"ID"`
	ColumnID     int       `json:"ColumnID"`
	Title        string    `json:"Title"`
	Description  string    `json:"Description"`
	CreationTime time.Time `json:"CreationTime"`
	DueDate      time.Time `json:"DueDate"`
	Assignee     string    `json:"Assignee"`
}

func (TaskEntity) Table() Table  { return TableTasks }
func (e TaskEntity) Key() Entity { return e.Entity }

// MemberEntity records that Email is a member of a board.
type MemberEntity struct {
	Entity
	Email string `json:"Email"`
}

func (MemberEntity) Table() Table  { return TableMembers }
func (e MemberEntity) Key() Entity { return e.Entity }
