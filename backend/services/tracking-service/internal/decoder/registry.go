package decoder

import (
	"fmt"
	"sort"
	"sync"
)

// Sniffer reports whether a frame looks like a given protocol.
type Sniffer func(frame []byte) bool

type entry struct {
	tag   string
	sniff Sniffer
}

// Registry selects a decoder per frame, first by signature and then by the
// configured default. It satisfies Decoder itself, so consumers only ever
// see the Decoder interface.
type Registry struct {
	mu         sync.RWMutex
	decoders   map[string]Decoder
	signatures []entry
	fallback   string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// NewDefaultRegistry registers every built-in protocol family with gps103 as
// the fallback.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ProtocolJSONLine, NewJSONLine(), SniffJSONLine)
	r.Register(ProtocolGPS103, NewGPS103(), SniffGPS103)
	_ = r.SetDefault(ProtocolGPS103)
	return r
}

// Register adds a decoder under tag. Signatures are tried in registration
// order; sniff may be nil for decoders that are only reachable as default.
func (r *Registry) Register(tag string, d Decoder, sniff Sniffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.decoders[tag]; !exists && sniff != nil {
		r.signatures = append(r.signatures, entry{tag: tag, sniff: sniff})
	}
	r.decoders[tag] = d
}

// SetDefault selects the decoder used when no signature matches.
func (r *Registry) SetDefault(tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.decoders[tag]; !ok {
		return fmt.Errorf("decoder: unknown protocol %q", tag)
	}
	r.fallback = tag
	return nil
}

// Lookup returns the decoder registered under tag.
func (r *Registry) Lookup(tag string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[tag]
	return d, ok
}

// Tags lists registered protocol tags.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.decoders))
	for tag := range r.decoders {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Select returns the decoder for frame, or nil when nothing matches and no
// default is set.
func (r *Registry) Select(frame []byte) (string, Decoder) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, sig := range r.signatures {
		if sig.sniff(frame) {
			return sig.tag, r.decoders[sig.tag]
		}
	}
	if r.fallback != "" {
		return r.fallback, r.decoders[r.fallback]
	}
	return "", nil
}

// Decode runs the selected decoder. Frames nobody claims yield raw text only.
func (r *Registry) Decode(frame []byte) Facts {
	tag, d := r.Select(frame)
	if d == nil {
		return Facts{RawText: frameText(frame)}
	}
	facts := d.Decode(frame)
	if facts.Protocol == "" {
		facts.Protocol = tag
	}
	return facts
}
