package ceras

import "reflect"

// SchemaMember is one position in a Schema (spec §3 "SchemaMember").
// IsSkip is true when a received schema's persistent name could not
// be resolved against the reader's current type; such a member
// carries no descriptor and is never emitted by a writer.
type SchemaMember struct {
	PersistentName string
	IsSkip         bool
	Member         *memberDescriptor
}

// Schema is the ordered list of SchemaMembers for a runtime type,
// plus the type itself (spec §3 "Schema"). Equality is structural:
// same type, same ordered persistent names, same skip flags, which
// is exactly what's needed to reuse a compiled SchemaFormatter for
// two schemas that happen to coincide.
type Schema struct {
	Type    reflect.Type
	Members []SchemaMember
}

// key returns a value usable as a map key for compiled-formatter
// memoization: reflect.Type already gives structural identity for
// the "current schema" case (one schema per type), and for a
// schema reconstructed off the wire during reads we additionally key
// on the ordered name/skip list so two differently-shaped incoming
// schemas for the same type don't collide.
type schemaKey struct {
	t     reflect.Type
	names string
}

func (s *Schema) key() schemaKey {
	names := make([]byte, 0, 32)
	for _, m := range s.Members {
		names = append(names, m.PersistentName...)
		names = append(names, 0)
		if m.IsSkip {
			names = append(names, 1)
		} else {
			names = append(names, 0)
		}
	}
	return schemaKey{t: s.Type, names: string(names)}
}

// currentSchema builds the write-time Schema for t: every member
// TypeConfigRegistry selects, in its resolved order, none skipped
// (spec §4.1 closing paragraph, §4.4 "Write plan").
func currentSchema(types *TypeConfigRegistry, t reflect.Type) *Schema {
	selected := types.SelectMembers(t)
	members := make([]SchemaMember, len(selected))
	for i, sm := range selected {
		members[i] = SchemaMember{PersistentName: sm.persistentName, Member: sm.descriptor}
	}
	return &Schema{Type: t, Members: members}
}

// reconcileSchema resolves a persisted Schema (type + ordered persistent
// names only, as produced by SchemaCodec) against t's current
// members, producing the read-time Schema used to compile a read
// plan (spec §4.3 "On read").
func reconcileSchema(types *TypeConfigRegistry, t reflect.Type, persistentNames []string) *Schema {
	selected := types.SelectMembers(t)
	byName := make(map[string]*selectedMember, len(selected)*2)
	for i := range selected {
		byName[selected[i].persistentName] = &selected[i]
		for _, alt := range selected[i].alternateNames {
			byName[alt] = &selected[i]
		}
	}
	members := make([]SchemaMember, len(persistentNames))
	for i, name := range persistentNames {
		if sm, ok := byName[name]; ok {
			members[i] = SchemaMember{PersistentName: name, Member: sm.descriptor}
		} else {
			members[i] = SchemaMember{PersistentName: name, IsSkip: true}
		}
	}
	return &Schema{Type: t, Members: members}
}
