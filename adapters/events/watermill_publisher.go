package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/PIYUSH-GIRI23/zipp-clip/ports"
)

const (
	// RevokedTopic carries session revocations so other instances can
	// drop cached authorization state for the device.
	RevokedTopic = "auth.session.revoked"

	// RenewedTopic carries successful renewals.
	RenewedTopic = "auth.session.renewed"
)

// RevokedEvent is published when a failed renewal removes a device's
// history entry.
type RevokedEvent struct {
	Subject   string    `json:"subject"`
	Origin    string    `json:"origin"`
	Reason    string    `json:"reason"`
	RevokedAt time.Time `json:"revoked_at"`
}

// RenewedEvent is published when a renewal mints a fresh token pair.
type RenewedEvent struct {
	Subject   string    `json:"subject"`
	Origin    string    `json:"origin"`
	RenewedAt time.Time `json:"renewed_at"`
}

// WatermillPublisher implements the EventPublisher interface on a
// watermill message publisher.
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher wraps an existing watermill publisher.
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

var _ ports.EventPublisher = (*WatermillPublisher)(nil)

// PublishRevoked publishes a session revocation.
func (p *WatermillPublisher) PublishRevoked(ctx context.Context, subject, origin, reason string) error {
	return p.publish(RevokedTopic, RevokedEvent{
		Subject:   subject,
		Origin:    origin,
		Reason:    reason,
		RevokedAt: time.Now(),
	})
}

// PublishRenewed publishes a successful renewal.
func (p *WatermillPublisher) PublishRenewed(ctx context.Context, subject, origin string) error {
	return p.publish(RenewedTopic, RenewedEvent{
		Subject:   subject,
		Origin:    origin,
		RenewedAt: time.Now(),
	})
}

func (p *WatermillPublisher) publish(topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
