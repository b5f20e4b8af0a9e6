package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
)

// publisher matches the Pub/Sub v2 publisher surface used here.
type publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// PubSubNotifier publishes notification envelopes to the configured
// notification topic. Downstream consumers fan out to email/webhooks.
type PubSubNotifier struct {
	pub publisher
	now func() time.Time
}

// NewPubSubNotifier builds a Pub/Sub backed notifier.
func NewPubSubNotifier(pub publisher) (*PubSubNotifier, error) {
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	return &PubSubNotifier{pub: pub, now: time.Now}, nil
}

type envelope struct {
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sentAt"`
}

func (n *PubSubNotifier) Notify(ctx context.Context, recipient, subject, body string) error {
	payload, err := json.Marshal(envelope{
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		SentAt:    n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	result := n.pub.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"recipient": recipient,
			"source":    "billing",
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
