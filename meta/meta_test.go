package meta

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeLowerSpecial(t *testing.T) {
	enc := NewEncoder('.', '_')
	dec := NewDecoder('.', '_')
	cases := []string{"a", "example.a", "foo_bar.baz", "a.b.c_d"}
	for _, s := range cases {
		data, kind := enc.Encode(s)
		require.Equal(t, LowerSpecial, kind)
		got, err := dec.Decode(data, len(s), kind)
		require.Nil(t, err)
		require.Equal(t, s, got)
	}
}

func TestEncodeDecodeMixedCase(t *testing.T) {
	enc := NewEncoder('$', '_')
	dec := NewDecoder('$', '_')
	s := "Example$Foo_Bar"
	data, kind := enc.Encode(s)
	require.Equal(t, AllToLowerSpecial, kind)
	got, err := dec.Decode(data, len(s), kind)
	require.Nil(t, err)
	require.Equal(t, s, got)
}

func TestEncodeDecodeUTF8Fallback(t *testing.T) {
	enc := NewEncoder('.', '_')
	dec := NewDecoder('.', '_')
	s := "namespace/with slashes!"
	data, kind := enc.Encode(s)
	require.Equal(t, UTF_8, kind)
	got, err := dec.Decode(data, len(s), kind)
	require.Nil(t, err)
	require.Equal(t, s, got)
}

func TestEncodeEmpty(t *testing.T) {
	enc := NewEncoder('.', '_')
	data, kind := enc.Encode("")
	require.Equal(t, LowerSpecial, kind)
	require.Nil(t, data)
}
