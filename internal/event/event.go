// Package event defines the domain events the store hands to the platform
// event bus once a transaction has committed.
package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Type names a domain event.
type Type string

const (
	CouponCreated   Type = "coupon.created"
	CouponUpdated   Type = "coupon.updated"
	ScheduleCreated Type = "schedule.created"
	ScheduleUpdated Type = "schedule.updated"
)

// Event is a committed change to one aggregate.
type Event struct {
	ID          uuid.UUID
	Type        Type
	TenantID    uuid.UUID // uuid.Nil when the aggregate is not tenant-owned
	AggregateID uuid.UUID
	OccurredAt  time.Time
}

// New builds an event stamped with a fresh id and the current time.
func New(t Type, tenantID, aggregateID uuid.UUID) Event {
	return Event{
		ID:          uuid.New(),
		Type:        t,
		TenantID:    tenantID,
		AggregateID: aggregateID,
		OccurredAt:  time.Now().UTC(),
	}
}

// Bus publishes events. Delivery guarantees belong to the implementation.
type Bus interface {
	Publish(ctx context.Context, e Event) error
}

// Noop discards every event.
type Noop struct{}

// Publish implements Bus.
func (Noop) Publish(context.Context, Event) error { return nil }

// LogBus writes events to the default logger. It stands in for a real bus
// in local and single-process deployments.
type LogBus struct{}

// Publish implements Bus.
func (LogBus) Publish(ctx context.Context, e Event) error {
	slog.InfoContext(ctx, "domain event",
		"event_id", e.ID.String(),
		"type", string(e.Type),
		"tenant_id", e.TenantID.String(),
		"aggregate_id", e.AggregateID.String(),
		"occurred_at", e.OccurredAt.Format(time.RFC3339),
	)
	return nil
}
