package ceras

import "reflect"

// refResolver is the per-invocation reference-tracking table (spec
// §5 "Shared-resource policy": this state "would require locking to
// share", hence one Serializer per worker). IDs are assigned in
// first-seen order on write and consumed in the same order on read,
// so a fresh pointee carries only pointerFormatter's value tag; only
// a back-reference writes its id, after the cached tag.
type refResolver struct {
	writeIDs map[uintptr]uint32
	readPtrs []reflect.Value
}

func newRefResolver() *refResolver {
	return &refResolver{writeIDs: make(map[uintptr]uint32)}
}

// writeRef returns the id for v's pointee, and whether it had
// already been written once before in this invocation.
func (r *refResolver) writeRef(v reflect.Value) (id uint32, seen bool) {
	ptr := v.Pointer()
	if id, ok := r.writeIDs[ptr]; ok {
		return id, true
	}
	id = uint32(len(r.writeIDs))
	r.writeIDs[ptr] = id
	return id, false
}

// registerRead must be called immediately after allocating a new
// pointee, before recursing into its own Deserialize, so that a
// cycle back to this pointer resolves correctly (spec S5).
func (r *refResolver) registerRead(v reflect.Value) {
	r.readPtrs = append(r.readPtrs, v)
}

func (r *refResolver) readRef(id uint32) (reflect.Value, bool) {
	if int(id) >= len(r.readPtrs) {
		return reflect.Value{}, false
	}
	return r.readPtrs[id], true
}
