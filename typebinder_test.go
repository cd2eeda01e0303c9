package ceras

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type unregisteredStruct struct {
	Value int32
}

// A type that was only ever encoded via NameFor's qualified-name
// fallback — never explicitly Bind'd — must still resolve back
// through TypeFor on the same binder, or any version-tolerant or
// interface-typed round trip through one Serializer would panic
// UnknownType on read despite succeeding on write.
func TestReflectTypeBinderFallbackIsReversible(t *testing.T) {
	b := NewReflectTypeBinder()
	typ := reflect.TypeOf(unregisteredStruct{})

	name, ok := b.NameFor(typ)
	require.True(t, ok)
	require.NotEmpty(t, name)

	got, ok := b.TypeFor(name)
	require.True(t, ok, "TypeFor(%q) should resolve the type NameFor just fell back to", name)
	require.Equal(t, typ, got)
}

// An explicit Bind still takes precedence over the fallback, and
// remains stable across repeated NameFor calls.
func TestReflectTypeBinderExplicitBindWins(t *testing.T) {
	b := NewReflectTypeBinder()
	typ := reflect.TypeOf(unregisteredStruct{})
	b.Bind(typ, "custom.Name")

	name, ok := b.NameFor(typ)
	require.True(t, ok)
	require.Equal(t, "custom.Name", name)

	got, ok := b.TypeFor("custom.Name")
	require.True(t, ok)
	require.Equal(t, typ, got)
}
