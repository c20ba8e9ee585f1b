// Package events publishes booking domain events after their transaction
// commits. Delivery is best effort.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	AppointmentBooked    = "appointment.booked"
	AppointmentCancelled = "appointment.cancelled"
	AppointmentConfirmed = "appointment.confirmed"
	AppointmentStarted   = "appointment.started"
	AppointmentCompleted = "appointment.completed"
	AppointmentNoShow    = "appointment.no_show"
	AppointmentExpired   = "appointment.expired"
	PaymentCompleted     = "payment.completed"
	PaymentFailed        = "payment.failed"
	PaymentRefunded      = "payment.refunded"
)

type Envelope struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

type Publisher interface {
	Publish(ctx context.Context, eventType string, data any) error
	Close() error
}

func encode(eventType string, data any) ([]byte, error) {
	body, err := json.Marshal(Envelope{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return body, nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, eventType string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Envelope{ID: uuid.New(), Type: eventType, OccurredAt: time.Now().UTC(), Data: data})
	return nil
}

func (r *Recorder) Close() error { return nil }

// Types lists the recorded event types in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
