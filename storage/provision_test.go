package storage

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

type fakeCreator struct {
	name    string
	created *[]string
	err     error
}

func (f fakeCreator) CreateTable(context.Context, *aztables.CreateTableOptions) (aztables.CreateTableResponse, error) {
	*f.created = append(*f.created, f.name)
	return aztables.CreateTableResponse{}, f.err
}

func (f fakeCreator) Create(context.Context, *azqueue.CreateOptions) (azqueue.CreateResponse, error) {
	*f.created = append(*f.created, f.name)
	return azqueue.CreateResponse{}, f.err
}

func TestEnsureTablesIgnoresExisting(t *testing.T) {
	var created []string
	exists := &azcore.ResponseError{StatusCode: http.StatusConflict, ErrorCode: string(aztables.TableAlreadyExists)}
	err := ensureTables(context.Background(), []string{"boards", "", "tasks"}, func(name string) tableCreator {
		c := fakeCreator{name: name, created: &created}
		if name == "tasks" {
			c.err = exists
		}
		return c
	})
	if err != nil {
		t.Fatalf("ensure tables: %v", err)
	}
	if len(created) != 2 || created[0] != "boards" || created[1] != "tasks" {
		t.Fatalf("unexpected creations: %v", created)
	}
}

func TestEnsureTablesPropagatesFailure(t *testing.T) {
	var created []string
	err := ensureTables(context.Background(), []string{"boards"}, func(name string) tableCreator {
		return fakeCreator{name: name, created: &created, err: &azcore.ResponseError{StatusCode: http.StatusForbidden, ErrorCode: "AuthorizationFailure"}}
	})
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) || respErr.StatusCode != http.StatusForbidden {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestEnsureQueues(t *testing.T) {
	var created []string
	err := ensureQueues(context.Background(), []string{"board-events", ""}, func(name string) (queueCreator, error) {
		return fakeCreator{name: name, created: &created, err: &azcore.ResponseError{StatusCode: http.StatusConflict, ErrorCode: "QueueAlreadyExists"}}, nil
	})
	if err != nil {
		t.Fatalf("ensure queues: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("unexpected creations: %v", created)
	}

	err = ensureQueues(context.Background(), []string{"x"}, func(string) (queueCreator, error) {
		return nil, errors.New("bad connection string")
	})
	if err == nil {
		t.Fatal("expected client error")
	}
}
