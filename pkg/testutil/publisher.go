package testutil

import (
	"context"
	"sync"

	"github.com/scanpay-lab/backend/pkg/pubsub"
)

type PublishedPack struct {
	Topic string
	Pack  *pubsub.Pack
}

type MockPublisher struct {
	PublishFunc func(context.Context, string, *pubsub.Pack) error

	mutex     sync.Mutex
	Published []PublishedPack
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, pack *pubsub.Pack) error {
	m.mutex.Lock()
	m.Published = append(m.Published, PublishedPack{Topic: topic, Pack: pack})
	m.mutex.Unlock()

	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, pack)
	}

	return nil
}
