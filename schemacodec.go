package ceras

import "reflect"

// persistedSchema is the wire-level decode of a Schema before it has
// been reconciled against a reader's current type (spec §4.3).
type persistedSchema struct {
	Type  reflect.Type
	Names []string
}

// SchemaCodec writes and reads Schema values (spec §4.3, wire layout
// in spec §6.1: `Schema := Type VarUInt(N) { LenPrefixedString }*N`).
// It never emits member types or flags: a skipped member's absence is
// discovered purely by name reconciliation, and its bytes are
// skippable only because SchemaFormatter prefixes every member with
// its size.
type SchemaCodec struct {
	typeCodec *typeCodec
}

func newSchemaCodec(tc *typeCodec) *SchemaCodec { return &SchemaCodec{typeCodec: tc} }

func (c *SchemaCodec) writeSchema(buf *ByteBuffer, cache *typeCache, schema *Schema) {
	c.typeCodec.writeType(buf, cache, schema.Type)
	buf.WriteVarUint32(uint32(len(schema.Members)))
	for _, m := range schema.Members {
		buf.WriteString(m.PersistentName)
	}
}

func (c *SchemaCodec) readSchema(buf *ByteBuffer, cache *typeCache, limits SizeLimits) persistedSchema {
	t := c.typeCodec.readType(buf, cache, limits)
	n := buf.ReadVarUint32()
	if n > limits.MaxCollectionElements {
		panic(newError(MaliciousInput, "schema member count %d exceeds limit %d", n, limits.MaxCollectionElements))
	}
	names := make([]string, n)
	for i := range names {
		names[i] = buf.ReadString(limits.MaxStringLength)
	}
	return persistedSchema{Type: t, Names: names}
}
