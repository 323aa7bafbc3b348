package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/scanpay-lab/backend/internal/entity"
	"github.com/scanpay-lab/backend/internal/model"
	"github.com/scanpay-lab/backend/pkg/enum"
	"github.com/scanpay-lab/backend/pkg/pubsub"
	"github.com/scanpay-lab/backend/pkg/xcontext"
)

// qrKey returns the registry key of a payload and its hash. Keys are
// compared exactly, so only surrounding whitespace is dropped.
func qrKey(payload string) (string, string) {
	key := strings.TrimSpace(payload)
	sum := sha256.Sum256([]byte(key))
	return key, hex.EncodeToString(sum[:])
}

// publish sends a message after its transaction has been committed. The
// database stays the source of truth, so failures are only logged.
func publish(ctx context.Context, publisher pubsub.Publisher, topic, key string, msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot marshal message of topic %s: %v", topic, err)
		return
	}

	err = publisher.Publish(ctx, topic, &pubsub.Pack{Key: []byte(key), Msg: b})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot publish message to topic %s: %v", topic, err)
	}
}

func publishRewardEvents(ctx context.Context, publisher pubsub.Publisher, events ...*entity.RewardEvent) {
	for _, e := range events {
		publish(ctx, publisher, model.RewardEventTopic, e.Address, model.RewardEventMessage{
			ID:      e.ID,
			Type:    enum.ToString(e.Type),
			Address: e.Address,
			Data:    e.Data,
		})
	}
}
