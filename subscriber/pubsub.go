package subscriber

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"

	"feedflow/logger"
)

// PubsubSource resolves subscription names against one Google Cloud
// Pub/Sub project.
type PubsubSource struct {
	client         *pubsub.Client
	maxOutstanding int
	log            *logger.Log
}

// NewPubsubSource connects to the project's Pub/Sub service. Credentials
// come from the ambient environment (GOOGLE_APPLICATION_CREDENTIALS or
// workload identity).
func NewPubsubSource(ctx context.Context, projectID string, maxOutstanding int) (*PubsubSource, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client for project %s: %w", projectID, err)
	}

	log := logger.GetLogger()
	log.WithComponent("pubsub_source").WithFields(logger.Fields{
		"project_id":      projectID,
		"max_outstanding": maxOutstanding,
	}).Info("pubsub source initialized")

	return &PubsubSource{
		client:         client,
		maxOutstanding: maxOutstanding,
		log:            log,
	}, nil
}

func (s *PubsubSource) Subscription(name string) Receiver {
	sub := s.client.Subscription(name)
	if s.maxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = s.maxOutstanding
	}
	return &pubsubReceiver{sub: sub}
}

func (s *PubsubSource) Close() error {
	return s.client.Close()
}

type pubsubReceiver struct {
	sub *pubsub.Subscription
}

func (r *pubsubReceiver) Exists(ctx context.Context) (bool, error) {
	return r.sub.Exists(ctx)
}

func (r *pubsubReceiver) Receive(ctx context.Context, handler func(context.Context, *Message)) error {
	return r.sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		handler(ctx, &Message{Data: m.Data, Ack: m.Ack, Nack: m.Nack})
	})
}
