package ceras

import (
	"reflect"
	"sync"
)

// Formatter serializes and deserializes values of one declared type
// (spec §4.2). Deserialize overwrites target in place: target must be
// addressable and settable, enabling the object-reuse contract of
// the top-level Deserialize operation (spec §6.3).
type Formatter interface {
	Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value)
	Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value)
}

// forwarder is the placeholder formatter used to break recursive
// construction (spec §4.2, "deadlock-free recursion protocol";
// DESIGN NOTES "Formatter self-reference"). It is published into the
// registry before the real formatter exists, then the real formatter
// is swapped into forwarder.target once construction completes.
type forwarder struct {
	target Formatter
}

func (f *forwarder) Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value) {
	f.target.Serialize(s, buf, v)
}
func (f *forwarder) Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value) {
	f.target.Deserialize(s, buf, target)
}

// FormatterRegistry resolves a Formatter for a declared type,
// memoizing by type and consulting user resolvers before built-ins
// (spec §4.2).
type FormatterRegistry struct {
	cfg *SerializerConfig

	mu         sync.Mutex
	byType     map[reflect.Type]Formatter
	inProgress map[reflect.Type]*forwarder
}

func newFormatterRegistry(cfg *SerializerConfig) *FormatterRegistry {
	return &FormatterRegistry{
		cfg:        cfg,
		byType:     make(map[reflect.Type]Formatter),
		inProgress: make(map[reflect.Type]*forwarder),
	}
}

// Resolve returns the Formatter for declared type u, building and
// memoizing it if this is the first request.
func (r *FormatterRegistry) Resolve(types *TypeConfigRegistry, u reflect.Type) Formatter {
	r.mu.Lock()
	if f, ok := r.byType[u]; ok {
		r.mu.Unlock()
		return f
	}
	if fw, ok := r.inProgress[u]; ok {
		r.mu.Unlock()
		return fw // self-reference: hand back the forwarder, not yet populated
	}
	fw := &forwarder{}
	r.inProgress[u] = fw
	r.mu.Unlock()

	f := r.build(types, u)

	r.mu.Lock()
	fw.target = f
	delete(r.inProgress, u)
	r.byType[u] = f
	r.mu.Unlock()
	return f
}

// FormatterFor exposes formatter resolution to advanced callers that
// compose their own Formatter with the engine's graph — notably
// code generated by cmd/cerasgen, which still wants the built-in and
// user-registered formatters for each field it encodes.
func (s *Serializer) FormatterFor(t reflect.Type) Formatter {
	return s.formatters.Resolve(s.types, t)
}

func (r *FormatterRegistry) build(types *TypeConfigRegistry, u reflect.Type) Formatter {
	for _, resolver := range r.cfg.OnResolveFormatter {
		if f := resolver(u); f != nil {
			return f
		}
	}
	if f := builtinFormatter(r, types, u); f != nil {
		return f
	}
	if r.cfg.VersionTolerance == VersionToleranceAutomaticEmbedded && u.Kind() == reflect.Struct {
		return newSchemaAwareFormatter(r, types, u)
	}
	return newReflectObjectFormatter(r, types, u)
}
