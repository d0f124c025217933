package exchange

import (
	"fmt"

	"github.com/dexsniper/sniperd/internal/domain"
)

// Registry is the fixed venue table for one network, built once at startup
// from the configured exchange list. It is immutable after construction and
// safe for concurrent reads.
type Registry struct {
	byID  map[domain.ExchangeID]Descriptor
	order []Descriptor
}

// NewRegistry selects the configured venues out of the builtin table. Every
// requested venue must exist and must live on the given network.
func NewRegistry(network string, enabled []domain.ExchangeID) (*Registry, error) {
	if len(enabled) == 0 {
		return nil, fmt.Errorf("exchange: no venues enabled for network %q", network)
	}
	r := &Registry{byID: make(map[domain.ExchangeID]Descriptor, len(enabled))}
	for _, id := range enabled {
		d, ok := lookupBuiltin(id)
		if !ok {
			return nil, fmt.Errorf("exchange: %w: %q", domain.ErrUnsupportedExchange, id)
		}
		if d.Network != network {
			return nil, fmt.Errorf("exchange: venue %q runs on %q, not %q", id, d.Network, network)
		}
		if _, dup := r.byID[id]; dup {
			return nil, fmt.Errorf("exchange: venue %q listed twice", id)
		}
		r.byID[id] = d
		r.order = append(r.order, d)
	}
	return r, nil
}

func lookupBuiltin(id domain.ExchangeID) (Descriptor, bool) {
	for _, d := range builtin {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Get returns the descriptor for a venue.
func (r *Registry) Get(id domain.ExchangeID) (Descriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("exchange: %w: %q", domain.ErrUnsupportedExchange, id)
	}
	return d, nil
}

// All returns the descriptors in configuration order.
func (r *Registry) All() []Descriptor {
	return r.order
}

// Len returns the number of configured venues.
func (r *Registry) Len() int { return len(r.order) }
