package ceras

import (
	"reflect"
	"unsafe"
)

// builtinFormatter returns a Formatter for u's shape if one of the
// built-in kinds applies (spec §4.2 step 2), or nil to fall through
// to the generic reflective formatter.
func builtinFormatter(reg *FormatterRegistry, types *TypeConfigRegistry, u reflect.Type) Formatter {
	switch u.Kind() {
	case reflect.Bool:
		return boolFormatter{}
	case reflect.Int8, reflect.Uint8:
		return byteFormatter{signed: u.Kind() == reflect.Int8}
	case reflect.Int16, reflect.Uint16:
		return int16Formatter{signed: u.Kind() == reflect.Int16}
	case reflect.Int32, reflect.Uint32:
		return int32Formatter{signed: u.Kind() == reflect.Int32}
	case reflect.Int64, reflect.Uint64, reflect.Int, reflect.Uint:
		return int64Formatter{kind: u.Kind()}
	case reflect.Float32:
		return float32Formatter{}
	case reflect.Float64:
		return float64Formatter{}
	case reflect.String:
		return stringFormatter{}
	case reflect.Slice:
		if u.Elem().Kind() == reflect.Uint8 {
			return byteSliceFormatter{}
		}
		return &sliceFormatter{reg: reg, types: types, elemType: u.Elem()}
	case reflect.Array:
		return &arrayFormatter{reg: reg, types: types, elemType: u.Elem(), length: u.Len()}
	case reflect.Map:
		return &mapFormatter{reg: reg, types: types, keyType: u.Key(), valType: u.Elem()}
	case reflect.Ptr:
		return &pointerFormatter{reg: reg, types: types, elemType: u.Elem()}
	case reflect.Interface:
		return &interfaceFormatter{reg: reg, types: types}
	case reflect.Func:
		return &delegateFormatter{}
	case reflect.Struct:
		// Reinterpret-cast is only sound when nothing downstream needs
		// to reconcile this type's shape against a different one: a
		// version-tolerant read has no schema to recover from a raw
		// byte blob, so the flag is honored only while version
		// tolerance is off (spec §4.2 step ordering, §6.1).
		if reg.cfg.UseReinterpretFormatter && reg.cfg.VersionTolerance == VersionToleranceDisabled && isBlittable(u) {
			return reinterpretFormatter{t: u}
		}
		return nil
	default:
		return nil
	}
}

// isBlittable reports whether t (recursively, through arrays and
// nested structs) contains only fixed-width value kinds with no
// managed reference anywhere in its layout — no string, slice, map,
// pointer, interface, func, or chan. Such a type can be copied
// byte-for-byte instead of walked member by member (spec §4.2
// "reinterpret-cast... for managed-reference-free structs").
func isBlittable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int8, reflect.Uint8,
		reflect.Int16, reflect.Uint16,
		reflect.Int32, reflect.Uint32,
		reflect.Int64, reflect.Uint64,
		reflect.Int, reflect.Uint,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Array:
		return isBlittable(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !isBlittable(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// reinterpretFormatter is the spec's reinterpret-cast fast path: a
// blittable struct's in-memory bytes are written and read directly,
// skipping per-member dispatch entirely. It honors native endianness
// only, per spec §6.1 — the caller is responsible for not mixing
// architectures, and SPEC_FULL.md's non-goals exclude teaching it to
// do otherwise.
type reinterpretFormatter struct {
	t reflect.Type
}

func (f reinterpretFormatter) Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value) {
	buf.WriteBinary(reinterpretBytes(v))
}

func (f reinterpretFormatter) Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value) {
	size := uint32(f.t.Size())
	data := buf.ReadBinary(size)
	setReinterpretBytes(target, data)
}

// reinterpretBytes copies v's raw memory. v need not be addressable
// (e.g. a map value); when it isn't, it is first copied into an
// addressable temporary purely to take its address, not to mutate it.
func reinterpretBytes(v reflect.Value) []byte {
	if !v.CanAddr() {
		tmp := reflect.New(v.Type()).Elem()
		tmp.Set(v)
		v = tmp
	}
	size := int(v.Type().Size())
	src := unsafe.Slice((*byte)(unsafe.Pointer(v.UnsafeAddr())), size)
	out := make([]byte, size)
	copy(out, src)
	return out
}

// setReinterpretBytes overwrites target's raw memory with data, which
// must be exactly target's type's size.
func setReinterpretBytes(target reflect.Value, data []byte) {
	size := int(target.Type().Size())
	if len(data) != size {
		panic(newError(SchemaMismatch, "reinterpret payload is %d bytes, %s requires %d", len(data), target.Type(), size))
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(target.UnsafeAddr())), size)
	copy(dst, data)
}

type boolFormatter struct{}

func (boolFormatter) Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value) { buf.WriteBool(v.Bool()) }
func (boolFormatter) Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value) {
	target.SetBool(buf.ReadBool())
}

type byteFormatter struct{ signed bool }

func (f byteFormatter) Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value) {
	if f.signed {
		buf.WriteByte_(uint8(v.Int()))
	} else {
		buf.WriteByte_(uint8(v.Uint()))
	}
}
func (f byteFormatter) Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value) {
	b := buf.ReadByte_()
	if f.signed {
		target.SetInt(int64(int8(b)))
	} else {
		target.SetUint(uint64(b))
	}
}

type int16Formatter struct{ signed bool }

func (f int16Formatter) Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value) {
	if f.signed {
		buf.WriteInt16(int16(v.Int()))
	} else {
		buf.WriteInt16(int16(v.Uint()))
	}
}
func (f int16Formatter) Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value) {
	v := buf.ReadInt16()
	if f.signed {
		target.SetInt(int64(v))
	} else {
		target.SetUint(uint64(uint16(v)))
	}
}

type int32Formatter struct{ signed bool }

func (f int32Formatter) Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value) {
	if f.signed {
		buf.WriteVarInt32(int32(v.Int()))
	} else {
		buf.WriteVarUint32(uint32(v.Uint()))
	}
}
func (f int32Formatter) Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value) {
	if f.signed {
		target.SetInt(int64(buf.ReadVarInt32()))
	} else {
		target.SetUint(uint64(buf.ReadVarUint32()))
	}
}

type int64Formatter struct{ kind reflect.Kind }

func (f int64Formatter) Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value) {
	switch f.kind {
	case reflect.Int64, reflect.Int:
		buf.WriteInt64(v.Int())
	default:
		buf.WriteInt64(int64(v.Uint()))
	}
}
func (f int64Formatter) Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value) {
	v := buf.ReadInt64()
	switch f.kind {
	case reflect.Int64, reflect.Int:
		target.SetInt(v)
	default:
		target.SetUint(uint64(v))
	}
}

type float32Formatter struct{}

func (float32Formatter) Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value) {
	buf.WriteFloat32(float32(v.Float()))
}
func (float32Formatter) Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value) {
	target.SetFloat(float64(buf.ReadFloat32()))
}

type float64Formatter struct{}

func (float64Formatter) Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value) {
	buf.WriteFloat64(v.Float())
}
func (float64Formatter) Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value) {
	target.SetFloat(buf.ReadFloat64())
}

type stringFormatter struct{}

func (stringFormatter) Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value) {
	buf.WriteString(v.String())
}
func (stringFormatter) Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value) {
	target.SetString(buf.ReadString(s.cfg.Limits.MaxStringLength))
}

type byteSliceFormatter struct{}

func (byteSliceFormatter) Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value) {
	buf.WriteBinary(v.Bytes())
}
func (byteSliceFormatter) Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value) {
	target.SetBytes(buf.ReadBinary(s.cfg.Limits.MaxByteArrayLength))
}

type sliceFormatter struct {
	reg      *FormatterRegistry
	types    *TypeConfigRegistry
	elemType reflect.Type
}

func (f *sliceFormatter) elemFormatter() Formatter { return f.reg.Resolve(f.types, f.elemType) }

func (f *sliceFormatter) Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value) {
	if v.IsNil() {
		buf.WriteVarUint32(0)
		return
	}
	n := v.Len()
	buf.WriteVarUint32(uint32(n) + 1) // +1 distinguishes nil (0) from empty (1)
	ef := f.elemFormatter()
	for i := 0; i < n; i++ {
		ef.Serialize(s, buf, v.Index(i))
	}
}

func (f *sliceFormatter) Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value) {
	raw := buf.ReadVarUint32()
	if raw == 0 {
		target.Set(reflect.Zero(target.Type()))
		return
	}
	n := raw - 1
	if n > s.cfg.Limits.MaxArrayElements {
		panic(newError(MaliciousInput, "slice length %d exceeds limit %d", n, s.cfg.Limits.MaxArrayElements))
	}
	out := reflect.MakeSlice(target.Type(), int(n), int(n))
	ef := f.elemFormatter()
	for i := 0; i < int(n); i++ {
		ef.Deserialize(s, buf, out.Index(i))
	}
	target.Set(out)
}

type arrayFormatter struct {
	reg      *FormatterRegistry
	types    *TypeConfigRegistry
	elemType reflect.Type
	length   int
}

func (f *arrayFormatter) elemFormatter() Formatter { return f.reg.Resolve(f.types, f.elemType) }

func (f *arrayFormatter) Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value) {
	ef := f.elemFormatter()
	for i := 0; i < f.length; i++ {
		ef.Serialize(s, buf, v.Index(i))
	}
}

func (f *arrayFormatter) Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value) {
	ef := f.elemFormatter()
	for i := 0; i < f.length; i++ {
		ef.Deserialize(s, buf, target.Index(i))
	}
}

type mapFormatter struct {
	reg               *FormatterRegistry
	types             *TypeConfigRegistry
	keyType, valType  reflect.Type
}

func (f *mapFormatter) Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value) {
	if v.IsNil() {
		buf.WriteVarUint32(0)
		return
	}
	buf.WriteVarUint32(uint32(v.Len()) + 1)
	kf := f.reg.Resolve(f.types, f.keyType)
	vf := f.reg.Resolve(f.types, f.valType)
	iter := v.MapRange()
	for iter.Next() {
		kf.Serialize(s, buf, iter.Key())
		vf.Serialize(s, buf, iter.Value())
	}
}

func (f *mapFormatter) Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value) {
	raw := buf.ReadVarUint32()
	if raw == 0 {
		target.Set(reflect.Zero(target.Type()))
		return
	}
	n := raw - 1
	if n > s.cfg.Limits.MaxCollectionElements {
		panic(newError(MaliciousInput, "map length %d exceeds limit %d", n, s.cfg.Limits.MaxCollectionElements))
	}
	out := reflect.MakeMapWithSize(target.Type(), int(n))
	kf := f.reg.Resolve(f.types, f.keyType)
	vf := f.reg.Resolve(f.types, f.valType)
	for i := uint32(0); i < n; i++ {
		key := reflect.New(f.keyType).Elem()
		kf.Deserialize(s, buf, key)
		val := reflect.New(f.valType).Elem()
		vf.Deserialize(s, buf, val)
		out.SetMapIndex(key, val)
	}
	target.Set(out)
}

// pointerFormatter wires reference tracking (spec §4.2 built-ins,
// "reference-tracked objects"; PreserveReferences in §6.2): a nil
// pointer, a back-reference to an earlier-seen pointee, or a fresh
// payload are distinguished by a one-byte tag.
type pointerFormatter struct {
	reg      *FormatterRegistry
	types    *TypeConfigRegistry
	elemType reflect.Type
}

const (
	refTagNil    = 0
	refTagValue  = 1
	refTagCached = 2
)

func (f *pointerFormatter) Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value) {
	if v.IsNil() {
		buf.WriteByte_(refTagNil)
		return
	}
	if s.cfg.PreserveReferences {
		if id, seen := s.refs.writeRef(v); seen {
			buf.WriteByte_(refTagCached)
			buf.WriteVarUint32(id)
			return
		}
	}
	buf.WriteByte_(refTagValue)
	ef := f.reg.Resolve(f.types, f.elemType)
	ef.Serialize(s, buf, v.Elem())
}

func (f *pointerFormatter) Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value) {
	switch buf.ReadByte_() {
	case refTagNil:
		target.Set(reflect.Zero(target.Type()))
	case refTagCached:
		id := buf.ReadVarUint32()
		ptr, ok := s.refs.readRef(id)
		if !ok {
			panic(newError(SchemaMismatch, "reference id %d not yet seen", id))
		}
		target.Set(ptr)
	case refTagValue:
		ptr := reflect.New(f.elemType)
		if s.cfg.PreserveReferences {
			s.refs.registerRead(ptr)
		}
		ef := f.reg.Resolve(f.types, f.elemType)
		ef.Deserialize(s, buf, ptr.Elem())
		target.Set(ptr)
	default:
		panic(newError(SchemaMismatch, "invalid reference tag"))
	}
}

// interfaceFormatter serializes a dynamically-typed value by writing
// its concrete type (via the TypeBinder) ahead of the payload.
type interfaceFormatter struct {
	reg   *FormatterRegistry
	types *TypeConfigRegistry
}

func (f *interfaceFormatter) Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value) {
	if v.IsNil() {
		buf.WriteBool(false)
		return
	}
	buf.WriteBool(true)
	elem := v.Elem()
	s.typeCodec.writeType(buf, s.typeCache, elem.Type())
	ef := f.reg.Resolve(f.types, elem.Type())
	tmp := reflect.New(elem.Type()).Elem()
	tmp.Set(elem)
	ef.Serialize(s, buf, tmp)
}

func (f *interfaceFormatter) Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value) {
	if !buf.ReadBool() {
		target.Set(reflect.Zero(target.Type()))
		return
	}
	t := s.typeCodec.readType(buf, s.typeCache, s.cfg.Limits)
	tmp := reflect.New(t).Elem()
	ef := f.reg.Resolve(f.types, t)
	ef.Deserialize(s, buf, tmp)
	target.Set(tmp)
}

// delegateFormatter handles func-typed members (spec §6.2
// DelegateSerialization; SPEC_FULL §3.1). Go cannot serialize a
// closure's code or captures, so only the *presence* of a non-nil
// delegate round-trips: on read the target keeps whatever func value
// the caller's instance already had, matching the spirit of "Missing
// members retain whatever value they had" for a construct the format
// fundamentally cannot carry.
type delegateFormatter struct{}

func (delegateFormatter) Serialize(s *Serializer, buf *ByteBuffer, v reflect.Value) {
	mode := s.cfg.DelegateSerialization
	if mode == DelegateOff {
		panic(newError(DelegateNotAllowed, "delegate serialization is Off"))
	}
	if mode == DelegateAllowStatic && !v.IsNil() {
		panic(newError(DelegateNotAllowed, "instance delegate encountered while DelegateSerialization=AllowStatic"))
	}
	buf.WriteBool(!v.IsNil())
}

func (delegateFormatter) Deserialize(s *Serializer, buf *ByteBuffer, target reflect.Value) {
	if s.cfg.DelegateSerialization == DelegateOff {
		panic(newError(DelegateNotAllowed, "delegate serialization is Off"))
	}
	buf.ReadBool() // presence only; the target's existing func value (if any) is left untouched.
}
