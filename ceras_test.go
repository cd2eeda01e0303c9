package ceras

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func serde(t *testing.T, s *Serializer, value interface{}) {
	data, err := s.Marshal(value)
	require.NoError(t, err, "marshal %v (%T)", value, value)

	to := reflect.New(reflect.TypeOf(value))
	err = s.Unmarshal(data, to.Interface())
	require.NoError(t, err, "unmarshal %v (%T)", value, value)
	require.Equal(t, value, to.Elem().Interface())
}

func primitiveValues() []interface{} {
	return []interface{}{
		false, true,
		int8(-1), int8(1), int8(0x7f),
		uint8(0), uint8(0xff),
		int16(-1), int16(1), int16(0x7fff),
		uint16(0), uint16(0xffff),
		int32(-1), int32(1), int32(0x7fffffff),
		uint32(0), uint32(0xffffffff),
		int64(-1), int64(1), int64(0x7fffffffffffffff),
		uint64(0), uint64(0xffffffffffffffff),
		float32(-1.5), float32(1.5),
		float64(-1.5), float64(1.5),
		"", "hello world",
	}
}

// S1: round-trip identity — Unmarshal(Marshal(v)) equals v for every
// representative primitive kind.
func TestRoundTripPrimitives(t *testing.T) {
	s := NewSerializer()
	for _, v := range primitiveValues() {
		serde(t, s, v)
	}
}

func TestRoundTripSlicesAndArrays(t *testing.T) {
	s := NewSerializer()
	serde(t, s, []int32{1, 2, 3})
	serde(t, s, []int32(nil))
	serde(t, s, []int32{})
	serde(t, s, []string{"a", "", "b"})
	serde(t, s, [4]int32{10, 20, 30, 40})
	serde(t, s, []byte{0, 1, 2, 0xff})
}

func TestRoundTripMaps(t *testing.T) {
	s := NewSerializer()
	serde(t, s, map[string]int32{"a": 1, "b": 2, "": 0})
	serde(t, s, map[string]int32(nil))
}

type Address struct {
	Street string
	City   string
}

type Person struct {
	Name    string
	Age     int32
	Address Address
	Tags    []string
}

func TestRoundTripNestedStruct(t *testing.T) {
	s := NewSerializer()
	p := Person{
		Name: "Ada",
		Age:  36,
		Address: Address{
			Street: "1 Infinite Loop",
			City:   "Cupertino",
		},
		Tags: []string{"math", "computing"},
	}
	serde(t, s, p)
}

type Node struct {
	Value int32
	Next  *Node
}

// S5: cyclic graph — a pointer cycle round-trips without infinite
// recursion, relying on forwarder-based formatter construction and
// reference tracking.
func TestRoundTripCyclicGraph(t *testing.T) {
	s := NewSerializer()
	a := &Node{Value: 1}
	b := &Node{Value: 2}
	a.Next = b
	b.Next = a

	data, err := s.Marshal(a)
	require.NoError(t, err)

	var out *Node
	require.NoError(t, s.Unmarshal(data, &out))
	require.Equal(t, int32(1), out.Value)
	require.Equal(t, int32(2), out.Next.Value)
	require.Same(t, out, out.Next.Next)
}

// S2: offset balance — the low-level Serialize/Deserialize pair leaves
// buf/offset advanced by exactly the encoded length, so two values
// written back to back decode independently.
func TestOffsetBalance(t *testing.T) {
	s := NewSerializer()
	var buf []byte
	offset := 0

	require.NoError(t, s.Serialize(int32(42), &buf, &offset))
	firstEnd := offset
	require.NoError(t, s.Serialize("trailing", &buf, &offset))
	require.Greater(t, offset, firstEnd)

	readOffset := 0
	var first int32
	require.NoError(t, s.Deserialize(buf, &readOffset, &first))
	require.Equal(t, firstEnd, readOffset)

	var second string
	require.NoError(t, s.Deserialize(buf, &readOffset, &second))
	require.Equal(t, offset, readOffset)
	require.Equal(t, int32(42), first)
	require.Equal(t, "trailing", second)
}

type PersonV1 struct {
	Name string
	Age  int32
}

type PersonV2 struct {
	Name    string
	Age     int32
	Email   string
}

// S3: version tolerance, added field — a stream written from the
// narrower type decodes into the wider type, leaving the new field at
// its zero value.
func TestVersionToleranceAddedField(t *testing.T) {
	s := NewSerializer(WithVersionTolerance(VersionToleranceAutomaticEmbedded))

	data, err := s.Marshal(PersonV1{Name: "Grace", Age: 40})
	require.NoError(t, err)

	var v2 PersonV2
	require.NoError(t, s.Unmarshal(data, &v2))
	require.Equal(t, "Grace", v2.Name)
	require.Equal(t, int32(40), v2.Age)
	require.Equal(t, "", v2.Email)
}

// S4: version tolerance, removed field — a stream written from the
// wider type decodes into the narrower type, silently skipping the
// member the reader's type no longer has.
func TestVersionToleranceRemovedField(t *testing.T) {
	s := NewSerializer(WithVersionTolerance(VersionToleranceAutomaticEmbedded))

	data, err := s.Marshal(PersonV2{Name: "Grace", Age: 40, Email: "g@example.com"})
	require.NoError(t, err)

	var v1 PersonV1
	require.NoError(t, s.Unmarshal(data, &v1))
	require.Equal(t, "Grace", v1.Name)
	require.Equal(t, int32(40), v1.Age)
}

type Renamed struct {
	FullName string `ceras:"name=name,alt=Name;FullName"`
}

type RenamedOld struct {
	Name string
}

// S4b: a member renamed on the reading side still reconciles against
// an older stream through its declared alternate names.
func TestVersionToleranceRenamedMember(t *testing.T) {
	s := NewSerializer(WithVersionTolerance(VersionToleranceAutomaticEmbedded))

	data, err := s.Marshal(RenamedOld{Name: "legacy"})
	require.NoError(t, err)

	var renamed Renamed
	require.NoError(t, s.Unmarshal(data, &renamed))
	require.Equal(t, "legacy", renamed.FullName)
}

type Point struct {
	X, Y int32
}

// The reinterpret-cast fast path is only eligible for blittable
// structs (no string/slice/map/pointer/interface/func/chan anywhere in
// the field closure) and round-trips like any other formatter.
func TestReinterpretFormatterRoundTrip(t *testing.T) {
	s := NewSerializer()
	serde(t, s, Point{X: 10, Y: -20})
	serde(t, s, Point{})
}

func TestUseReinterpretFormatterOptOut(t *testing.T) {
	s := NewSerializer(WithUseReinterpretFormatter(false))
	serde(t, s, Point{X: 5, Y: 6})
}

// Version tolerance takes priority over the reinterpret-cast fast
// path even for an otherwise-eligible blittable struct, since a raw
// byte copy carries no schema for a differently-shaped reader to
// reconcile against.
func TestReinterpretFormatterYieldsToVersionTolerance(t *testing.T) {
	reinterpretSerializer := NewSerializer()
	tolerantSerializer := NewSerializer(WithVersionTolerance(VersionToleranceAutomaticEmbedded))

	p := Point{X: 1, Y: 2}
	viaReinterpret, err := reinterpretSerializer.Marshal(p)
	require.NoError(t, err)
	viaSchema, err := tolerantSerializer.Marshal(p)
	require.NoError(t, err)

	require.NotEqual(t, len(viaReinterpret), len(viaSchema),
		"a version-tolerant encoding carries a schema and per-member size prefixes the reinterpret path does not emit")

	var out Point
	require.NoError(t, tolerantSerializer.Unmarshal(viaSchema, &out))
	require.Equal(t, p, out)
}

// S6: size-limit enforcement — a declared length that exceeds the
// configured limit fails with MaliciousInput before any allocation
// proportional to it is attempted.
func TestSizeLimitRejectsOversizedLength(t *testing.T) {
	s := NewSerializer(WithSizeLimits(SizeLimits{
		MaxStringLength:       1 << 20,
		MaxArrayElements:      4,
		MaxByteArrayLength:    1 << 20,
		MaxCollectionElements: 1 << 20,
	}))

	data, err := s.Marshal([]int32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	var out []int32
	err = s.Unmarshal(data, &out)
	require.Error(t, err)
	require.True(t, IsKind(err, MaliciousInput), "expected MaliciousInput, got %v", err)
}

type Container struct {
	Payload interface{}
}

// S7: known-types sealed mode — an unlisted type reached through an
// interface-typed member fails fast with UnknownType instead of
// silently falling back to by-name encoding.
func TestKnownTypesSealedModeRejectsUnlistedType(t *testing.T) {
	s := NewSerializer(WithKnownTypes(reflect.TypeOf(Address{})))

	_, err := s.Marshal(Container{Payload: Person{Name: "x"}})
	require.Error(t, err)
	require.True(t, IsKind(err, UnknownType), "expected UnknownType, got %v", err)
}

func TestKnownTypesSealedModeAcceptsListedType(t *testing.T) {
	s := NewSerializer(WithKnownTypes(reflect.TypeOf(Address{})))
	serde(t, s, Container{Payload: Address{Street: "Elm", City: "Metropolis"}})
}

func TestMagicNumberRejectsForeignStream(t *testing.T) {
	s := NewSerializer()
	var bogus int32
	err := s.Unmarshal([]byte{0xde, 0xad, 0xbe, 0xef}, &bogus)
	require.Error(t, err)
	require.True(t, IsKind(err, MaliciousInput))
}

func TestChecksumMismatchDetected(t *testing.T) {
	s := NewSerializer(WithEmbedChecksum(true))
	data, err := s.Marshal(int32(7))
	require.NoError(t, err)

	corrupted := append([]byte(nil), data...)
	corrupted[len(corrupted)-1] ^= 0xff

	var out int32
	err = s.Unmarshal(corrupted, &out)
	require.Error(t, err)
	require.True(t, IsKind(err, ChecksumMismatch))
}

type unexported struct {
	visible string
	hidden  string
}

func TestAllMembersIncludesUnexportedFields(t *testing.T) {
	s := NewSerializer(
		WithDefaultTargets(AllMembers),
		WithReadonlyFieldHandling(ReadonlyForcedOverwrite),
	)
	serde(t, s, unexported{visible: "v", hidden: "h"})
}

func TestRegisterTagTypeThenMarshalInterface(t *testing.T) {
	s := NewSerializer()
	require.NoError(t, s.RegisterTagType("ceras_test.Address", Address{}))

	serde(t, s, Container{Payload: Address{Street: "Main St", City: "Springfield"}})
}

func TestTypeConfigExcludeOverridesDefault(t *testing.T) {
	s := NewSerializer()
	s.ConfigType(reflect.TypeOf(Person{})).Exclude("Tags")

	data, err := s.Marshal(Person{Name: "A", Age: 1, Tags: []string{"x"}})
	require.NoError(t, err)

	var out Person
	require.NoError(t, s.Unmarshal(data, &out))
	require.Equal(t, "A", out.Name)
	require.Nil(t, out.Tags)
}

func ExampleSerializer_Marshal() {
	s := NewSimpleSerializer(true)
	data, err := s.Marshal(Person{Name: "Ada", Age: 36})
	if err != nil {
		panic(err)
	}
	var out Person
	if err := s.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	fmt.Println(out.Name, out.Age)
	// Output: Ada 36
}
