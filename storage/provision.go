package storage

import (
	"context"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"
)

// Provision creates the given tables and queues. Existing ones are left alone
// and empty names are skipped.
func Provision(ctx context.Context, connStr string, tables, queues []string) error {
	if err := createTables(ctx, connStr, tables); err != nil {
		return err
	}
	return createQueues(ctx, connStr, queues)
}

type tableCreator interface {
	CreateTable(ctx context.Context, options *aztables.CreateTableOptions) (aztables.CreateTableResponse, error)
}

type queueCreator interface {
	Create(ctx context.Context, options *azqueue.CreateOptions) (azqueue.CreateResponse, error)
}

func createTables(ctx context.Context, connStr string, names []string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	return ensureTables(ctx, names, func(name string) tableCreator { return svc.NewClient(name) })
}

func ensureTables(ctx context.Context, names []string, client func(name string) tableCreator) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		_, err := client(name).CreateTable(ctx, nil)
		if err != nil {
			var respErr *azcore.ResponseError
			if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
				return err
			}
		}
		log.WithField("table", name).Debug("table ready")
	}
	return nil
}

func createQueues(ctx context.Context, connStr string, names []string) error {
	return ensureQueues(ctx, names, func(name string) (queueCreator, error) {
		return azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
	})
}

func ensureQueues(ctx context.Context, names []string, client func(name string) (queueCreator, error)) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		q, err := client(name)
		if err != nil {
			return err
		}
		_, err = q.Create(ctx, nil)
		if err != nil {
			var respErr *azcore.ResponseError
			if !(errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists") {
				return err
			}
		}
		log.WithField("queue", name).Debug("queue ready")
	}
	return nil
}
