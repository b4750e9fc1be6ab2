package message

import (
	"fmt"
	"sort"
	"sync"
)

// DecodeFunc parses a raw payload into a concrete variant.
type DecodeFunc func(raw []byte) (Decoded, error)

// Registry maps type tags to decoders.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]DecodeFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]DecodeFunc)}
}

// DefaultRegistry returns a registry with the bank send decoder installed.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypeMsgSend, decodeMsgSend)
	return r
}

// Register installs (or replaces) the decoder for a type tag.
func (r *Registry) Register(typeURL string, fn DecodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[typeURL] = fn
}

// Known reports whether a decoder is registered for the tag.
func (r *Registry) Known(typeURL string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.decoders[typeURL]
	return ok
}

// Types lists registered tags in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.decoders))
	for t := range r.decoders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Decode turns a message into its variant. Unknown tags yield Opaque; a known tag
// whose payload does not parse yields an error wrapping ErrInvalidFormat.
func (r *Registry) Decode(m Message) (Decoded, error) {
	r.mu.RLock()
	fn, ok := r.decoders[m.TypeURL]
	r.mu.RUnlock()
	if !ok {
		return Opaque{Type: m.TypeURL, Raw: m.Value}, nil
	}
	d, err := fn(m.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFormat, m.TypeURL, err)
	}
	return d, nil
}
