package realtime

import "context"

// Bus carries events between server instances. A deployment with a single
// instance can run without one; the publisher then feeds the local hub
// directly.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	StartForwarder(ctx context.Context, onEvent func(ev Event)) error
	Close() error
}

// Publisher routes events to the bus when one is configured, otherwise
// straight into the local hub.
type Publisher struct {
	bus Bus
	hub *Hub
}

// NewPublisher wires a publisher; bus may be nil.
func NewPublisher(bus Bus, hub *Hub) *Publisher {
	return &Publisher{bus: bus, hub: hub}
}

// Publish fans the event out. With a bus configured the local hub receives
// the event via the forwarder like every other instance, which keeps
// delivery order identical across instances.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if p.bus != nil {
		return p.bus.Publish(ctx, ev)
	}
	p.hub.Deliver(ev)
	return nil
}
