package ceras

import "reflect"

// reflectObjectFormatter is the generic, non-version-tolerant object
// formatter (spec §4.2 step 3, the fallback): members are written in
// TypeConfigRegistry's resolved order with no schema and no
// per-member size prefix, so it round-trips structurally equal
// values (spec §8 property 1) but offers no version tolerance.
type reflectObjectFormatter struct {
	members    []selectedMember
	formatters []Formatter
}

func newReflectObjectFormatter(reg *FormatterRegistry, types *TypeConfigRegistry, t reflect.Type) *reflectObjectFormatter {
	selected := types.SelectMembers(t)
	formatters := make([]Formatter, len(selected))
	for i, m := range selected {
		if m.descriptor.overrideFormatter != nil {
			formatters[i] = m.descriptor.overrideFormatter
		} else {
			formatters[i] = reg.Resolve(types, m.descriptor.declaredType)
		}
	}
	return &reflectObjectFormatter{members: selected, formatters: formatters}
}

func (f *reflectObjectFormatter) Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value) {
	for i, m := range f.members {
		f.formatters[i].Serialize(s, buf, m.descriptor.get(v))
	}
}

func (f *reflectObjectFormatter) Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value) {
	for i, m := range f.members {
		f.formatters[i].Deserialize(s, buf, m.descriptor.get(target))
	}
}
