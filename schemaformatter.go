package ceras

import "reflect"

// maxMemberSize is the per-member encoded-size ceiling implied by the
// fixed signed-16-bit size prefix (spec §4.4 "Implication (known
// limitation)").
const maxMemberSize = 1<<15 - 1

// schemaFormatter is SchemaFormatter<T> (spec §4.4): a compiled pair
// of write/read plans for one concrete Schema. Construction resolves
// every member's Formatter once; Serialize/Deserialize are then pure
// functions over the buffer and value, with no further reflection on
// the hot path beyond the FieldByIndex accessor already captured in
// each memberDescriptor.
type schemaFormatter struct {
	schema     *Schema
	formatters []Formatter // parallel to schema.Members; nil entries are skip members
}

func newSchemaFormatter(reg *FormatterRegistry, types *TypeConfigRegistry, schema *Schema) *schemaFormatter {
	formatters := make([]Formatter, len(schema.Members))
	for i, m := range schema.Members {
		if m.IsSkip {
			continue
		}
		if m.Member.overrideFormatter != nil {
			formatters[i] = m.Member.overrideFormatter
		} else {
			formatters[i] = reg.Resolve(types, m.Member.declaredType)
		}
	}
	return &schemaFormatter{schema: schema, formatters: formatters}
}

// Serialize runs the write plan (spec §4.4 "Write plan"): every
// member is prefixed by a reserved two-byte slot, written, then the
// slot is rewound and patched with the member's encoded size.
func (f *schemaFormatter) Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value) {
	for i, m := range f.schema.Members {
		if m.IsSkip {
			continue // a write-time schema never contains skip members
		}
		start := buf.Offset()
		buf.WriteInt16(0)
		f.formatters[i].Serialize(s, buf, m.Member.get(v))
		end := buf.Offset()
		size := end - start - 2
		if size > maxMemberSize {
			panic(newError(MaliciousInput, "member %q encodes to %d bytes, exceeding the %d-byte version-tolerant limit", m.PersistentName, size, maxMemberSize))
		}
		buf.SetOffset(start)
		buf.WriteInt16(int16(size))
		buf.SetOffset(end)
	}
}

// Deserialize runs the read plan (spec §4.4 "Read plan") compiled
// from the *received* schema: skip members are consumed by advancing
// past their declared size; present members are decoded in place.
// Members absent from the received schema but present on target's
// type are never touched, so they retain whatever value target
// already carried (spec §4.4, "Missing members").
func (f *schemaFormatter) Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value) {
	for i, m := range f.schema.Members {
		size := buf.ReadInt16()
		if size < 0 {
			panic(newError(MaliciousInput, "negative member size prefix for %q", m.PersistentName))
		}
		start := buf.Offset()
		if m.IsSkip {
			buf.SetOffset(start + int(size))
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					if _, ok := r.(*Error); ok {
						panic(r)
					}
					panic(wrapError(SchemaMismatch, asError(r), "member %q could not be decoded as %s", m.PersistentName, m.Member.declaredType))
				}
			}()
			f.formatters[i].Deserialize(s, buf, m.Member.get(target))
		}()
		if buf.Offset() != start+int(size) {
			// A formatter that over/under-consumed relative to the
			// declared size means the payload and the reader's type
			// disagree about this member's shape; trust the size
			// prefix so the rest of the stream stays in sync.
			buf.SetOffset(start + int(size))
		}
	}
}

func asError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return newError(SchemaMismatch, "%v", r)
}
