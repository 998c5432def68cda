// Package events provides NATS JetStream publishing for cart lifecycle events
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cart-service/internal/models"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const streamName = "CART"

// Event subjects
const (
	SubjectItemAdded   = "cart.item_added"
	SubjectItemUpdated = "cart.item_updated"
	SubjectItemRemoved = "cart.item_removed"
	SubjectCartCleared = "cart.cleared"
	SubjectCartMerged  = "cart.merged"
)

// CartEvent is the payload published for every cart lifecycle change
type CartEvent struct {
	EventID     string    `json:"eventId"`
	EventType   string    `json:"eventType"`
	TenantID    string    `json:"tenantId"`
	CartID      string    `json:"cartId"`
	ProductID   string    `json:"productId,omitempty"`
	GuestCartID string    `json:"guestCartId,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher publishes cart events to NATS JetStream
type Publisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Entry
}

// NewPublisher connects to NATS and ensures the cart stream exists
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("cart-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	p := &Publisher{
		nc:     nc,
		js:     js,
		logger: logger.WithField("component", "cart-events"),
	}

	if _, err := js.StreamInfo(streamName); err != nil {
		if _, err := js.AddStream(&nats.StreamConfig{
			Name:     streamName,
			Subjects: []string{"cart.>"},
			Storage:  nats.FileStorage,
			MaxAge:   7 * 24 * time.Hour,
		}); err != nil {
			p.logger.WithError(err).Warn("Failed to ensure cart stream (may already exist)")
		}
	}

	return p, nil
}

// Close drains the NATS connection
func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}

// PublishCartMutated publishes the event matching the action a mutation took
func (p *Publisher) PublishCartMutated(ctx context.Context, tenantID string, cartID, productID uuid.UUID, action models.CartAction) error {
	var subject string
	switch action {
	case models.ActionAdded:
		subject = SubjectItemAdded
	case models.ActionUpdated:
		subject = SubjectItemUpdated
	case models.ActionRemoved:
		subject = SubjectItemRemoved
	default:
		return nil
	}

	return p.publish(ctx, CartEvent{
		EventID:   uuid.NewString(),
		EventType: subject,
		TenantID:  tenantID,
		CartID:    cartID.String(),
		ProductID: productID.String(),
		Timestamp: time.Now().UTC(),
	})
}

// PublishCartCleared publishes a cart.cleared event
func (p *Publisher) PublishCartCleared(ctx context.Context, tenantID string, cartID uuid.UUID) error {
	return p.publish(ctx, CartEvent{
		EventID:   uuid.NewString(),
		EventType: SubjectCartCleared,
		TenantID:  tenantID,
		CartID:    cartID.String(),
		Timestamp: time.Now().UTC(),
	})
}

// PublishCartMerged publishes a cart.merged event after a guest merge commits
func (p *Publisher) PublishCartMerged(ctx context.Context, tenantID string, userCartID, guestCartID uuid.UUID) error {
	return p.publish(ctx, CartEvent{
		EventID:     uuid.NewString(),
		EventType:   SubjectCartMerged,
		TenantID:    tenantID,
		CartID:      userCartID.String(),
		GuestCartID: guestCartID.String(),
		Timestamp:   time.Now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, event CartEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.js.Publish(event.EventType, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.EventType, err)
	}

	p.logger.WithFields(logrus.Fields{
		"eventType": event.EventType,
		"cartId":    event.CartID,
	}).Debug("Published cart event")
	return nil
}
