package ceras

import (
	"reflect"

	"github.com/spaolacci/murmur3"
)

// MagicNumber is written as the first two little-endian bytes of
// every Marshal output (SPEC_FULL §4, "Magic number stream header",
// grounded on the teacher's TestSerializeBeginWithMagicNumber).
const MagicNumber int16 = 0x4352 // "CR", for Ceras

// Serializer is the engine instance (spec §5: "A SerializerConfig and
// its owning serializer instance are not shared across concurrent
// invocations"). Create one per worker goroutine.
type Serializer struct {
	cfg        *SerializerConfig
	types      *TypeConfigRegistry
	formatters *FormatterRegistry
	typeCodec  *typeCodec
	schemaCodec *SchemaCodec

	// schemaFormatters persists for the Serializer's lifetime: a
	// compiled SchemaFormatter is reusable across many invocations as
	// long as the Schema it was built from recurs (spec §4.4
	// "generated once at construction").
	schemaFormatters map[uint64]*schemaFormatter

	// Per-invocation scratch state (spec §5 "Mutable state during a
	// single invocation"), reset by resetInvocation unless
	// PersistTypeCache asks to keep typeCache alive.
	refs            *refResolver
	typeCache       *typeCache
	writtenSchemata map[schemaKey]bool
	readSchemata    map[reflect.Type]*Schema
}

// NewSerializer builds a Serializer from options, applying the spec
// §6.2 defaults first (see NewConfig).
func NewSerializer(opts ...Option) *Serializer {
	return newSerializerFromConfig(NewConfig(opts...))
}

// NewSimpleSerializer mirrors the teacher's NewFory(referenceTracking
// bool) convenience constructor (SPEC_FULL §4).
func NewSimpleSerializer(referenceTracking bool) *Serializer {
	return newSerializerFromConfig(NewConfig(WithPreserveReferences(referenceTracking)))
}

func newSerializerFromConfig(cfg *SerializerConfig) *Serializer {
	s := &Serializer{
		cfg:              cfg,
		types:            newTypeConfigRegistry(cfg),
		schemaFormatters: make(map[uint64]*schemaFormatter),
	}
	s.typeCodec = newTypeCodec(cfg)
	s.schemaCodec = newSchemaCodec(s.typeCodec)
	s.formatters = newFormatterRegistry(cfg)
	s.resetInvocation()
	return s
}

func (s *Serializer) resetInvocation() {
	s.refs = newRefResolver()
	if !(s.cfg.PersistTypeCache && s.typeCache != nil) {
		s.typeCache = newTypeCache()
	}
	s.writtenSchemata = make(map[schemaKey]bool)
	s.readSchemata = make(map[reflect.Type]*Schema)
}

// seal freezes configuration before the first Serialize/Deserialize
// (spec §5 "Shared-resource policy").
func (s *Serializer) seal() {
	if !s.cfg.sealed {
		s.cfg.seal()
	}
}

// ConfigType returns a mutable TypeConfig for t, the "configuration
// lookup" of spec §4.1: it never fires the first-touch callback.
func (s *Serializer) ConfigType(t reflect.Type) *TypeConfig {
	s.cfg.requireUnsealed("ConfigType")
	return s.types.ConfigType(t)
}

// RegisterTagType binds t to a persistent type name and eagerly
// compiles its formatter, matching the teacher's
// fory.RegisterTagType("example.A", A{}) convenience (SPEC_FULL §4).
func (s *Serializer) RegisterTagType(name string, zeroValue interface{}) (err error) {
	defer func() { err = recoverAsError(recover()) }()
	t := reflect.TypeOf(zeroValue)
	s.cfg.TypeBinder.Bind(t, name)
	s.seal()
	s.formatters.Resolve(s.types, t)
	return nil
}

func recoverAsError(r interface{}) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(*Error); ok {
		return err
	}
	if err, ok := r.(error); ok {
		return wrapError(SchemaMismatch, err, "unexpected failure")
	}
	panic(r)
}

// Marshal encodes value into a fresh buffer, owning allocation and
// the magic-number/checksum header (SPEC_FULL §4). It is the
// convenience counterpart to the offset-passing Serialize below.
func (s *Serializer) Marshal(value interface{}) (data []byte, err error) {
	defer func() { err = recoverAsError(recover()) }()

	s.seal()
	s.resetInvocation()
	rv := reflect.ValueOf(value)
	requireMarshalable(rv)

	buf := NewByteBuffer(nil)
	buf.WriteInt16(MagicNumber)

	checksumPos := -1
	if s.cfg.EmbedChecksum {
		checksumPos = buf.Offset()
		buf.WriteInt32(0)
	}

	bodyStart := buf.Offset()
	f := s.formatters.Resolve(s.types, rv.Type())
	f.Serialize(s, buf, rv)

	if checksumPos >= 0 {
		sum := murmur3.Sum32(buf.Bytes()[bodyStart:])
		end := buf.Offset()
		buf.SetOffset(checksumPos)
		buf.WriteInt32(int32(sum))
		buf.SetOffset(end)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data (as produced by Marshal) into target, which
// must be a non-nil pointer. target is overwritten in place, enabling
// object reuse (spec §6.3).
func (s *Serializer) Unmarshal(data []byte, target interface{}) (err error) {
	defer func() { err = recoverAsError(recover()) }()

	s.seal()
	s.resetInvocation()
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		panic(newError(SchemaMismatch, "Unmarshal target must be a non-nil pointer, got %s", rv.Type()))
	}

	buf := NewByteBuffer(data)
	magic := buf.ReadInt16()
	if magic != MagicNumber {
		panic(newError(MaliciousInput, "bad magic number %x, expected %x", magic, MagicNumber))
	}

	var wantSum int32
	var bodyStart int
	if s.cfg.EmbedChecksum {
		wantSum = buf.ReadInt32()
		bodyStart = buf.Offset()
	} else {
		bodyStart = buf.Offset()
	}
	if s.cfg.EmbedChecksum {
		got := int32(murmur3.Sum32(data[bodyStart:]))
		if got != wantSum {
			panic(newError(ChecksumMismatch, "checksum %x does not match computed %x", wantSum, got))
		}
	}

	elem := rv.Elem()
	f := s.formatters.Resolve(s.types, elem.Type())
	f.Deserialize(s, buf, elem)
	return nil
}

func requireMarshalable(rv reflect.Value) {
	if rv.Kind() == reflect.Ptr {
		elemKind := rv.Elem().Kind()
		if elemKind == reflect.Ptr {
			panic(newError(SchemaMismatch, "pointer to pointer is not supported"))
		}
		if elemKind == reflect.Interface {
			panic(newError(SchemaMismatch, "pointer to interface is not supported"))
		}
	}
}

// Serialize is the low-level, offset-passing operation of spec §6.3:
// it appends value's encoding to *buf starting at *offset, and
// advances *offset by the encoded length. Unlike Marshal it writes
// no magic number or checksum, so it composes into a larger
// hand-rolled framing if the caller wants one.
func (s *Serializer) Serialize(value interface{}, buf *[]byte, offset *int) (err error) {
	defer func() { err = recoverAsError(recover()) }()
	s.seal()

	rv := reflect.ValueOf(value)
	requireMarshalable(rv)

	bb := &ByteBuffer{data: *buf, offset: *offset}
	f := s.formatters.Resolve(s.types, rv.Type())
	f.Serialize(s, bb, rv)
	*buf = bb.data
	*offset = bb.offset
	return nil
}

// Deserialize is the low-level counterpart to Serialize: it reads
// value for the caller-supplied target starting at *offset in buf,
// advancing *offset past the consumed bytes.
func (s *Serializer) Deserialize(buf []byte, offset *int, target interface{}) (err error) {
	defer func() { err = recoverAsError(recover()) }()
	s.seal()

	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		panic(newError(SchemaMismatch, "Deserialize target must be a non-nil pointer, got %s", rv.Type()))
	}

	bb := &ByteBuffer{data: buf, offset: *offset}
	f := s.formatters.Resolve(s.types, rv.Elem().Type())
	f.Deserialize(s, bb, rv.Elem())
	*offset = bb.offset
	return nil
}
