package storage

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"prism-kanban/domain"
)

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// QueueNotifier publishes board events to an Azure storage queue.
type QueueNotifier struct {
	queue queueClient
}

// NewQueueNotifier creates a notifier for the named queue.
func NewQueueNotifier(connStr, queue string) (*QueueNotifier, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queue, &opts)
	if err != nil {
		return nil, err
	}
	return &QueueNotifier{queue: q}, nil
}

// Publish enqueues ev as a JSON message.
func (n *QueueNotifier) Publish(ctx context.Context, ev domain.Event) error {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = n.queue.EnqueueMessage(ctx, string(data), nil)
	return err
}

// ChannelNotifier publishes board events on a Redis channel.
type ChannelNotifier struct {
	redis   *redis.Client
	channel string
}

func NewChannelNotifier(client *redis.Client, channel string) *ChannelNotifier {
	return &ChannelNotifier{redis: client, channel: channel}
}

func (n *ChannelNotifier) Publish(ctx context.Context, ev domain.Event) error {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	return n.redis.Publish(ctx, n.channel, data).Err()
}
