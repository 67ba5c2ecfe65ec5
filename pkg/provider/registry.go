package provider

import (
	"github.com/glorpus-work/modsync/pkg/model"
)

// Registry dispatches by provider tag over a closed set of clients.
type Registry struct {
	clients map[model.ProviderTag]Client
	order   []model.ProviderTag
}

// NewRegistry registers clients in search order. A later client with the same
// tag replaces an earlier one.
func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[model.ProviderTag]Client, len(clients))}
	for _, c := range clients {
		if c == nil {
			continue
		}
		if _, seen := r.clients[c.Tag()]; !seen {
			r.order = append(r.order, c.Tag())
		}
		r.clients[c.Tag()] = c
	}
	return r
}

// Get returns the client for tag. Unknown tags get the Unavailable variant so
// callers never branch on presence.
func (r *Registry) Get(tag model.ProviderTag) Client {
	if c, ok := r.clients[tag]; ok {
		return c
	}
	return NewUnavailable(tag, "not configured")
}

// Clients returns the registered clients in search order.
func (r *Registry) Clients() []Client {
	out := make([]Client, 0, len(r.order))
	for _, tag := range r.order {
		out = append(out, r.clients[tag])
	}
	return out
}

// Select returns the single client for tag when tag is set, else every client.
func (r *Registry) Select(tag model.ProviderTag) []Client {
	if tag == "" {
		return r.Clients()
	}
	return []Client{r.Get(tag)}
}

// Wrap applies decorate to every registered client and returns a new registry.
func (r *Registry) Wrap(decorate func(Client) Client) *Registry {
	wrapped := make([]Client, 0, len(r.order))
	for _, c := range r.Clients() {
		wrapped = append(wrapped, decorate(c))
	}
	return NewRegistry(wrapped...)
}
