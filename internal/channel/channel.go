package channel

import (
	"context"
	"strings"
	"sync"
)

// Channel delivers one message to one recipient. Send reports success as a
// boolean: the dispatcher aggregates per-recipient outcomes and records the
// reason separately, so a failed send is not an error to propagate.
type Channel interface {
	Type() string
	Supports(channelType string) bool
	Send(ctx context.Context, recipient, message, title string, config map[string]interface{}) bool
}

type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

func (r *Registry) Register(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[strings.ToLower(ch.Type())] = ch
}

// Resolve returns the channel registered for the given type tag, matching
// case-insensitively. The second return is false for unknown tags.
func (r *Registry) Resolve(channelType string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[strings.ToLower(channelType)]
	return ch, ok
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.channels))
	for t := range r.channels {
		types = append(types, t)
	}
	return types
}
