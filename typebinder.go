package ceras

import (
	"reflect"
	"sync"

	"github.com/maxidea1024/ceras-go/meta"
)

// TypeBinder is the bidirectional map between a runtime type and its
// persistent string name (spec §1, "external collaborators"). The
// core only depends on this interface; cross-process type identity
// is the binder's problem to solve.
type TypeBinder interface {
	// NameFor returns the persistent name for t, or ("", false) if t
	// is unknown to this binder.
	NameFor(t reflect.Type) (string, bool)
	// TypeFor returns the runtime type registered under name, or
	// (nil, false) if no type was ever bound to it.
	TypeFor(name string) (reflect.Type, bool)
	// Bind registers the association in both directions.
	Bind(t reflect.Type, name string)
}

// ReflectTypeBinder is the default TypeBinder: an explicit
// registration table, falling back to a type's package-qualified
// name (reflect.Type.String, with the package path prefixed) for
// types nobody bound by hand.
type ReflectTypeBinder struct {
	mu        sync.RWMutex
	toName    map[reflect.Type]string
	fromName  map[string]reflect.Type
}

func NewReflectTypeBinder() *ReflectTypeBinder {
	return &ReflectTypeBinder{
		toName:   make(map[reflect.Type]string),
		fromName: make(map[string]reflect.Type),
	}
}

func (b *ReflectTypeBinder) Bind(t reflect.Type, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.toName[t] = name
	b.fromName[name] = t
}

// NameFor returns t's bound name, or its package-qualified name as a
// fallback for a type nobody registered by hand — and, in that
// fallback case, binds the reverse mapping too, so a type that was
// only ever encoded (never explicitly Bind'd) still resolves back via
// TypeFor within the same TypeBinder. This is what lets version
// tolerance and reinterpretation-free structs round-trip through one
// Serializer without forcing every type through RegisterTagType;
// cross-process use still needs an explicit, stable registration
// (spec §7) since the qualified name is Go-internal and not a
// contract between two otherwise-unrelated binaries.
func (b *ReflectTypeBinder) NameFor(t reflect.Type) (string, bool) {
	b.mu.RLock()
	name, ok := b.toName[t]
	b.mu.RUnlock()
	if ok {
		return name, true
	}

	name = qualifiedName(t)
	b.mu.Lock()
	if existing, ok := b.toName[t]; ok {
		name = existing
	} else {
		b.toName[t] = name
		if _, taken := b.fromName[name]; !taken {
			b.fromName[name] = t
		}
	}
	b.mu.Unlock()
	return name, true
}

func (b *ReflectTypeBinder) TypeFor(name string) (reflect.Type, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.fromName[name]
	return t, ok
}

func qualifiedName(t reflect.Type) string {
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// typeCodec writes/reads type identity: by KnownTypes index when the
// type is listed there, otherwise (unless KnownTypes is sealed, which
// rejects the type) by a cached per-stream back-reference or a
// length-prefixed, meta-compressed persistent name (spec §4.3, §6.1).
type typeCodec struct {
	binder   TypeBinder
	known    []reflect.Type
	knownIdx map[reflect.Type]int
	sealed   bool

	nameEncoder *meta.Encoder
	nameDecoder *meta.Decoder
}

func newTypeCodec(cfg *SerializerConfig) *typeCodec {
	idx := make(map[reflect.Type]int, len(cfg.KnownTypes))
	for i, t := range cfg.KnownTypes {
		idx[t] = i
	}
	return &typeCodec{
		binder:      cfg.TypeBinder,
		known:       cfg.KnownTypes,
		knownIdx:    idx,
		sealed:      len(cfg.KnownTypes) > 0 && cfg.SealTypesWhenUsingKnownTypes,
		nameEncoder: meta.NewEncoder('$', '_'),
		nameDecoder: meta.NewDecoder('$', '_'),
	}
}

// typeCache maps types already written/read by name once in this
// call to a small back-reference id (KnownTypes entries are not
// numbered here), so a graph that repeats a type
// many times only pays the name encoding once. Reset per invocation
// unless PersistTypeCache keeps it alive across calls.
type typeCache struct {
	writeSeen map[reflect.Type]uint32
	readSeen  []reflect.Type
}

func newTypeCache() *typeCache {
	return &typeCache{writeSeen: make(map[reflect.Type]uint32)}
}

const (
	typeRefKnown     = 0
	typeRefCached    = 1
	typeRefByName    = 2
)

func (tc *typeCodec) writeType(buf *ByteBuffer, cache *typeCache, t reflect.Type) {
	if tc.known != nil {
		if idx, ok := tc.knownIdx[t]; ok {
			buf.WriteByte_(typeRefKnown)
			buf.WriteVarUint32(uint32(idx))
			return
		}
		if tc.sealed {
			panic(newError(UnknownType, "type %s is not present in KnownTypes and SealTypesWhenUsingKnownTypes is set", t))
		}
	}
	if id, ok := cache.writeSeen[t]; ok {
		buf.WriteByte_(typeRefCached)
		buf.WriteVarUint32(id)
		return
	}
	name, _ := tc.binder.NameFor(t)
	buf.WriteByte_(typeRefByName)
	data, enc := tc.nameEncoder.Encode(name)
	buf.WriteByte_(uint8(enc))
	buf.WriteVarUint32(uint32(len([]rune(name))))
	buf.WriteBinary(data)
	cache.writeSeen[t] = uint32(len(cache.writeSeen))
}

func (tc *typeCodec) readType(buf *ByteBuffer, cache *typeCache, limits SizeLimits) reflect.Type {
	switch buf.ReadByte_() {
	case typeRefKnown:
		idx := buf.ReadVarUint32()
		if int(idx) >= len(tc.known) {
			panic(newError(UnknownType, "known-type index %d out of range", idx))
		}
		return tc.known[idx]
	case typeRefCached:
		id := buf.ReadVarUint32()
		if int(id) >= len(cache.readSeen) {
			panic(newError(SchemaMismatch, "type back-reference %d not yet seen", id))
		}
		return cache.readSeen[id]
	case typeRefByName:
		enc := meta.Encoding(buf.ReadByte_())
		charCount := buf.ReadVarUint32()
		data := buf.ReadBinary(limits.MaxStringLength)
		name, err := tc.nameDecoder.Decode(data, int(charCount), enc)
		if err != nil {
			panic(wrapError(UnknownType, err, "failed to decode type name"))
		}
		t, ok := tc.binder.TypeFor(name)
		if !ok {
			panic(newError(UnknownType, "TypeBinder cannot resolve %q", name))
		}
		cache.readSeen = append(cache.readSeen, t)
		return t
	default:
		panic(newError(SchemaMismatch, "invalid type reference tag"))
	}
}
