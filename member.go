package ceras

import (
	"reflect"
	"strings"
	"unsafe"
)

// memberDescriptor captures one serializable member of a type: its
// declared type and a get/set pair. TypeConfigRegistry.SelectMembers
// builds a fresh set on every call; each compiled formatter keeps the
// descriptors it was built from (spec §4.1 closing paragraph).
type memberDescriptor struct {
	// declaringField is the reflect.StructField this member comes
	// from (Go has no separate "property" concept; see SPEC_FULL §3.1).
	declaringField reflect.StructField
	index          []int // reflect.Value.FieldByIndex path
	declaredType   reflect.Type
	readonly       bool
	// overrideFormatter, when non-nil, bypasses FormatterRegistry
	// resolution for this member (TypeConfig.Formatter).
	overrideFormatter Formatter
}

// get returns the member's field Value, promoted to settable via the
// standard unsafe.Pointer/reflect.NewAt trick when the field is
// unexported and addressable (ReadonlyHandling != ReadonlyExclude /
// DefaultTargets == AllMembers let such fields through selection in
// the first place). Read-only formatter paths (Serialize) never call
// the Set* methods this unlocks; they just read through the
// Kind-specific getters, which reflect permits even on a read-only
// Value.
func (m *memberDescriptor) get(target reflect.Value) reflect.Value {
	field := target.FieldByIndex(m.index)
	if !field.CanSet() && field.CanAddr() {
		field = reflect.NewAt(field.Type(), unsafe.Pointer(field.UnsafeAddr())).Elem()
	}
	return field
}

// memberOverride is a per-member configuration entry keyed by the
// member's declared (source) name, set through TypeConfig's
// Include, Exclude, Name and Formatter methods.
type memberOverride struct {
	include        *bool // nil = no explicit include/exclude override
	persistentName string
	alternateNames []string
	formatter      Formatter
}

// tagOptions is the parsed form of a `ceras:"..."` struct tag.
type tagOptions struct {
	name    string
	alt     []string
	exclude bool
	include bool
}

func parseTag(tag reflect.StructTag) (tagOptions, bool) {
	raw, ok := tag.Lookup("ceras")
	if !ok {
		return tagOptions{}, false
	}
	var opts tagOptions
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "exclude" || part == "-":
			opts.exclude = true
		case part == "include":
			opts.include = true
		case strings.HasPrefix(part, "name="):
			opts.name = strings.TrimPrefix(part, "name=")
		case strings.HasPrefix(part, "alt="):
			opts.alt = strings.Split(strings.TrimPrefix(part, "alt="), ";")
		}
	}
	return opts, true
}

func isCompilerGenerated(f reflect.StructField) bool {
	// Go's reflect package never surfaces compiler-synthesized fields
	// for ordinary struct types (unlike the CLR's backing fields for
	// auto-properties); this always returns false and exists only so
	// TypeConfigRegistry's step ordering matches spec §4.1 verbatim.
	return false
}

func isExported(f reflect.StructField) bool {
	return f.PkgPath == ""
}
