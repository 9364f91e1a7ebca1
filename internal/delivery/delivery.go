// Package delivery moves complaints from an at-least-once channel into the
// resolution engine. A message is acknowledged only after it has been fully
// processed; duplicates are possible and are processed again.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kalambet/triage/internal/resolution"
)

// Message is one delivered complaint.
type Message interface {
	Payload() []byte
	// Ack removes the message from the channel.
	Ack(ctx context.Context) error
	// Retry hands the message back for redelivery.
	Retry(ctx context.Context, reason error) error
}

// Source yields batches of messages. An empty batch with a nil error means
// nothing is waiting.
type Source interface {
	Fetch(ctx context.Context, limit int) ([]Message, error)
}

// Publisher puts a complaint payload on the channel.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// EncodeComplaint is the wire form shared by every backend.
func EncodeComplaint(c resolution.Complaint) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding complaint: %w", err)
	}
	return data, nil
}

// DecodeComplaint parses a payload produced by EncodeComplaint.
func DecodeComplaint(data []byte) (resolution.Complaint, error) {
	var c resolution.Complaint
	if err := json.Unmarshal(data, &c); err != nil {
		return resolution.Complaint{}, fmt.Errorf("decoding complaint: %w", err)
	}
	return c, nil
}

// Submit validates a complaint and publishes it. Invalid complaints never
// reach the channel; the error wraps resolution.ErrValidation.
func Submit(ctx context.Context, p Publisher, c resolution.Complaint) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := EncodeComplaint(c)
	if err != nil {
		return err
	}
	if err := p.Publish(ctx, data); err != nil {
		return fmt.Errorf("publishing complaint: %w", err)
	}
	return nil
}
