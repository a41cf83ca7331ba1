package container

// VarLenHandle is an interned (offset, length) reference into a
// VarLengthPool. The zero value denotes "no list".
type VarLenHandle struct {
	offset, length int32
}

// Empty reports whether the handle refers to a zero-length list.
func (h VarLenHandle) Empty() bool { return h.length == 0 }

// Len returns the number of elements referenced by h.
func (h VarLenHandle) Len() int { return int(h.length) }

// VarLengthPool is a single growable backing slice handing out
// (offset, length) handles for variable-arity operand lists: call
// arguments, BlockCall argument lists, and similar. Appending to the
// pool never invalidates previously issued handles because handles are
// never partially overwritten in place — building a new list always
// appends a fresh run.
type VarLengthPool[T any] struct {
	data []T
}

// NewVarLengthPool returns an empty VarLengthPool.
func NewVarLengthPool[T any]() VarLengthPool[T] {
	return VarLengthPool[T]{}
}

// Intern copies elems into the pool and returns a handle referencing
// them. An empty elems yields the zero handle.
func (p *VarLengthPool[T]) Intern(elems []T) VarLenHandle {
	if len(elems) == 0 {
		return VarLenHandle{}
	}
	off := len(p.data)
	p.data = append(p.data, elems...)
	return VarLenHandle{offset: int32(off), length: int32(len(elems))}
}

// View returns the slice referenced by h. The returned slice aliases the
// pool's backing array and must not be retained across a call to Intern
// that could grow the pool.
func (p *VarLengthPool[T]) View(h VarLenHandle) []T {
	if h.Empty() {
		return nil
	}
	return p.data[h.offset : h.offset+h.length]
}

// Reset clears the pool for reuse by the next function.
func (p *VarLengthPool[T]) Reset() {
	p.data = p.data[:0]
}
