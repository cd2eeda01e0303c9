package ceras

import (
	"reflect"

	"github.com/spaolacci/murmur3"
)

// schemaAwareFormatter composes SchemaCodec with schemaFormatter: the
// concern of emitting a type's schema into the stream exactly once
// per graph belongs here, not inside schemaFormatter itself (spec
// §4.4, "Emission of the schema into the stream").
type schemaAwareFormatter struct {
	reg   *FormatterRegistry
	types *TypeConfigRegistry
	t     reflect.Type
}

func newSchemaAwareFormatter(reg *FormatterRegistry, types *TypeConfigRegistry, t reflect.Type) *schemaAwareFormatter {
	return &schemaAwareFormatter{reg: reg, types: types, t: t}
}

func (f *schemaAwareFormatter) Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value) {
	schema := currentSchema(f.types, f.t)
	key := schema.key()
	if !s.writtenSchemata[key] {
		s.writtenSchemata[key] = true
		buf.WriteBool(true)
		s.schemaCodec.writeSchema(buf, s.typeCache, schema)
	} else {
		buf.WriteBool(false)
	}
	s.schemaFormatterFor(f.reg, f.types, schema).Serialize(s, buf, v)
}

func (f *schemaAwareFormatter) Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value) {
	var schema *Schema
	if buf.ReadBool() {
		persisted := s.schemaCodec.readSchema(buf, s.typeCache, s.cfg.Limits)
		schema = reconcileSchema(f.types, f.t, persisted.Names)
		s.readSchemata[f.t] = schema
	} else {
		schema = s.readSchemata[f.t]
		if schema == nil {
			panic(newError(SchemaMismatch, "schema omitted for %s but none was read earlier in this stream", f.t))
		}
	}
	s.schemaFormatterFor(f.reg, f.types, schema).Deserialize(s, buf, target)
}

// schemaFormatterFor memoizes compiled schemaFormatters by a
// structural-hash key (spec §9, open question on structural-hash
// dedup; SPEC_FULL §2 wires murmur3 here), so two calls that produce
// the same Schema for the same type reuse one compiled plan instead
// of resolving every member's Formatter again. Building the Schema
// itself (currentSchema/reconcileSchema) still runs member selection.
func (s *Serializer) schemaFormatterFor(reg *FormatterRegistry, types *TypeConfigRegistry, schema *Schema) *schemaFormatter {
	h := schemaHash(schema)
	if sf, ok := s.schemaFormatters[h]; ok {
		return sf
	}
	sf := newSchemaFormatter(reg, types, schema)
	s.schemaFormatters[h] = sf
	return sf
}

func schemaHash(schema *Schema) uint64 {
	k := schema.key()
	h := murmur3.New64()
	_, _ = h.Write([]byte(k.names))
	_, _ = h.Write([]byte(k.t.String()))
	return h.Sum64()
}
