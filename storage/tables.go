package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"prism-kanban/domain"
)

// tableClient is the subset of *aztables.Client used by Tables.
type tableClient interface {
	AddEntity(ctx context.Context, entity []byte, options *aztables.AddEntityOptions) (aztables.AddEntityResponse, error)
	UpdateEntity(ctx context.Context, entity []byte, options *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error)
	DeleteEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error)
	NewListEntitiesPager(options *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse]
}

// TableNames maps each mirror table to its Azure table name.
type TableNames struct {
	Boards  string
	Columns string
	Tasks   string
	Members string
}

// All returns the configured names in a stable order.
func (n TableNames) All() []string {
	return []string{n.Boards, n.Columns, n.Tasks, n.Members}
}

// Tables mirrors boards into Azure Table Storage.
type Tables struct {
	clients map[domain.Table]tableClient
}

// NewTables creates a Tables mirror from the given connection string.
func NewTables(connStr string, names TableNames) (*Tables, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return newTables(map[domain.Table]tableClient{
		domain.TableBoards:  svc.NewClient(names.Boards),
		domain.TableColumns: svc.NewClient(names.Columns),
		domain.TableTasks:   svc.NewClient(names.Tasks),
		domain.TableMembers: svc.NewClient(names.Members),
	}), nil
}

func newTables(clients map[domain.Table]tableClient) *Tables {
	return &Tables{clients: clients}
}

func (s *Tables) client(table domain.Table) (tableClient, error) {
	c, ok := s.clients[table]
	if !ok {
		return nil, fmt.Errorf("%w: unknown table %q", domain.ErrPersistenceUnavailable, table)
	}
	return c, nil
}

// Insert adds a new row. An existing row is reported as ErrPersistenceConflict.
func (s *Tables) Insert(ctx context.Context, row domain.Row) error {
	c, err := s.client(row.Table())
	if err != nil {
		return err
	}
	payload, err := encodeRow(row)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceUnavailable, err)
	}
	_, err = c.AddEntity(ctx, payload, nil)
	return classify(err)
}

// Update merges a single field into an existing row.
func (s *Tables) Update(ctx context.Context, table domain.Table, key domain.Entity, field string, value any) error {
	c, err := s.client(table)
	if err != nil {
		return err
	}
	ent := map[string]any{
		"PartitionKey": key.PartitionKey,
		"RowKey":       key.RowKey,
	}
	switch v := value.(type) {
	case time.Time:
		ent[field] = formatTime(v)
		ent[field+"@odata.type"] = domain.EdmDateTime
	case int:
		ent[field] = v
		ent[field+"@odata.type"] = domain.EdmInt32
	default:
		ent[field] = v
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceUnavailable, err)
	}
	et := azcore.ETagAny
	_, err = c.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	return classify(err)
}

// Delete removes a row. Deleting a missing row succeeds.
func (s *Tables) Delete(ctx context.Context, table domain.Table, key domain.Entity) error {
	c, err := s.client(table)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = c.DeleteEntity(ctx, key.PartitionKey, key.RowKey, &aztables.DeleteEntityOptions{IfMatch: &et})
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return classify(err)
}

// Boards lists every board row.
func (s *Tables) Boards(ctx context.Context) ([]domain.BoardEntity, error) {
	return listRows[domain.BoardEntity](ctx, s, domain.TableBoards, "")
}

// Columns lists the column rows of a board.
func (s *Tables) Columns(ctx context.Context, board domain.BoardKey) ([]domain.ColumnEntity, error) {
	return listRows[domain.ColumnEntity](ctx, s, domain.TableColumns, board.Partition())
}

// Tasks lists the task rows of a board.
func (s *Tables) Tasks(ctx context.Context, board domain.BoardKey) ([]domain.TaskEntity, error) {
	return listRows[domain.TaskEntity](ctx, s, domain.TableTasks, board.Partition())
}

// Members lists the membership rows of a board.
func (s *Tables) Members(ctx context.Context, board domain.BoardKey) ([]domain.MemberEntity, error) {
	return listRows[domain.MemberEntity](ctx, s, domain.TableMembers, board.Partition())
}

func listRows[T any](ctx context.Context, s *Tables, table domain.Table, partition string) ([]T, error) {
	c, err := s.client(table)
	if err != nil {
		return nil, err
	}
	var opts aztables.ListEntitiesOptions
	if partition != "" {
		filter := "PartitionKey eq '" + strings.ReplaceAll(partition, "'", "''") + "'"
		opts.Filter = &filter
	}
	pager := c.NewListEntitiesPager(&opts)
	out := []T{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, classify(err)
		}
		for _, e := range resp.Entities {
			var ent T
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, fmt.Errorf("decode %s row: %w", table, err)
			}
			out = append(out, ent)
		}
	}
	return out, nil
}

// classify maps table service errors onto the mirror error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusConflict {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceConflict, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistenceUnavailable, err)
}

type boardRow struct {
	domain.BoardEntity
	NextTaskIDType   string `json:"NextTaskID@odata.type"`
	NextColumnIDType string `json:"NextColumnID@odata.type"`
}

type columnRow struct {
	domain.ColumnEntity
	IDType      string `json:"ID@odata.type"`
	OrdinalType string `json:"Ordinal@odata.type"`
	LimitType   string `json:"Limit@odata.type"`
}

func encodeRow(row domain.Row) ([]byte, error) {
	switch r := row.(type) {
	case domain.BoardEntity:
		return json.Marshal(boardRow{BoardEntity: r, NextTaskIDType: domain.EdmInt32, NextColumnIDType: domain.EdmInt32})
	case domain.ColumnEntity:
		return json.Marshal(columnRow{ColumnEntity: r, IDType: domain.EdmInt32, OrdinalType: domain.EdmInt32, LimitType: domain.EdmInt32})
	case domain.TaskEntity:
		ent := map[string]any{
			"PartitionKey":            r.PartitionKey,
			"RowKey":                  r.RowKey,
			"ID":                      r.ID,
			"ID@odata.type":           domain.EdmInt32,
			"ColumnID":                r.ColumnID,
			"ColumnID@odata.type":     domain.EdmInt32,
			"Title":                   r.Title,
			"Description":             r.Description,
			"CreationTime":            formatTime(r.CreationTime),
			"CreationTime@odata.type": domain.EdmDateTime,
			"DueDate":                 formatTime(r.DueDate),
			"DueDate@odata.type":      domain.EdmDateTime,
			"Assignee":                r.Assignee,
		}
		return json.Marshal(ent)
	case domain.MemberEntity:
		return json.Marshal(r)
	}
	return nil, fmt.Errorf("unsupported row type %T", row)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
