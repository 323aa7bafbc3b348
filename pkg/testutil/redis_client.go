package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MockRedisClient keeps json values in memory. Expiration is ignored.
type MockRedisClient struct {
	mutex  sync.Mutex
	values map[string][]byte

	GetObjFunc func(ctx context.Context, key string, v any) error
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{values: map[string][]byte{}}
}

func (m *MockRedisClient) Exist(_ context.Context, key string) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	_, ok := m.values[key]
	return ok, nil
}

func (m *MockRedisClient) Del(_ context.Context, keys ...string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *MockRedisClient) SetObj(_ context.Context, key string, obj any, _ time.Duration) error {
	payload, err := json.Marshal(obj)
	if err != nil {
		return err
	}

	m.mutex.Lock()
	m.values[key] = payload
	m.mutex.Unlock()
	return nil
}

func (m *MockRedisClient) GetObj(ctx context.Context, key string, v any) error {
	if m.GetObjFunc != nil {
		return m.GetObjFunc(ctx, key, v)
	}

	m.mutex.Lock()
	payload, ok := m.values[key]
	m.mutex.Unlock()
	if !ok {
		return redis.Nil
	}

	return json.Unmarshal(payload, v)
}
