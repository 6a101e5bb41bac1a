package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/cardrail/backend/pkg/logger"
)

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) publishResult
}

type topicPublisher struct {
	p *pubsub.Publisher
}

func (t topicPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	return t.p.Publish(ctx, msg)
}

// PubSubNotifier publishes balance events to a Pub/Sub topic.
type PubSubNotifier struct {
	pub  publisher
	logg *logger.Logger
}

// NewPubSubNotifier wires a notifier around the balance topic publisher.
func NewPubSubNotifier(pub *pubsub.Publisher, logg *logger.Logger) (*PubSubNotifier, error) {
	if pub == nil {
		return nil, fmt.Errorf("balance publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &PubSubNotifier{pub: topicPublisher{p: pub}, logg: logg}, nil
}

// BalanceChanged publishes the event and logs delivery failures without
// surfacing them to the caller.
func (n *PubSubNotifier) BalanceChanged(ctx context.Context, event BalanceEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		n.logg.Error(ctx, "failed to encode balance event", err)
		return
	}

	res := n.pub.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type": EventBalanceChanged,
			"account_id": event.AccountID.String(),
		},
	})

	logCtx := n.logg.WithFields(context.WithoutCancel(ctx), map[string]any{
		"account_id":     event.AccountID.String(),
		"transaction_id": event.TransactionID.String(),
	})
	go func() {
		if _, err := res.Get(logCtx); err != nil {
			n.logg.Error(logCtx, "failed to publish balance event", err)
		}
	}()
}
