// README: Domain event messages published after each committed transition.
package booking

import (
	"context"
	"time"

	"cabdispatch/internal/types"
)

// MessageBus is satisfied by infra.AMQPPublisher.
type MessageBus interface {
	PublishJSON(ctx context.Context, routingKey string, v any) error
}

type eventMessage struct {
	BookingID  types.ID   `json:"booking_id"`
	FromStatus Status     `json:"from_status"`
	ToStatus   Status     `json:"to_status"`
	ActorRole  types.Role `json:"actor_role"`
	ActorID    *types.ID  `json:"actor_id,omitempty"`
	DriverID   *types.ID  `json:"driver_id,omitempty"`
	CabID      *types.ID  `json:"cab_id,omitempty"`
	At         time.Time  `json:"at"`
}

// BusPublisher routes events as "booking.<to_status>".
type BusPublisher struct {
	bus MessageBus
}

func NewBusPublisher(bus MessageBus) *BusPublisher {
	return &BusPublisher{bus: bus}
}

func RoutingKey(to Status) string {
	return "booking." + string(to)
}

func (p *BusPublisher) Publish(ctx context.Context, e Event) error {
	return p.bus.PublishJSON(ctx, RoutingKey(e.ToStatus), eventMessage{
		BookingID:  e.BookingID,
		FromStatus: e.FromStatus,
		ToStatus:   e.ToStatus,
		ActorRole:  e.ActorRole,
		ActorID:    e.ActorID,
		DriverID:   e.DriverID,
		CabID:      e.CabID,
		At:         e.CreatedAt,
	})
}
