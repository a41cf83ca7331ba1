// Package container holds the dense, arena-style data structures that
// every other package in this module is built on: append-only entity
// tables, interned variable-length operand pools, and small-set types
// used by the analyses and register allocator.
package container

// pageSize is the number of elements held by one page of a Table. Kept
// small enough that a half-empty last page doesn't waste much, large
// enough that per-function compiles don't fragment across many pages.
const pageSize = 256

// Table is a page-allocated, append-only arena for values of type T,
// indexed by a plain int. It never moves an already-allocated element
// (pointers returned by Allocate remain valid for the Table's lifetime),
// which is what lets entities elsewhere in this module be addressed by
// a stable integer index rather than a pointer.
type Table[T any] struct {
	pages   []*[pageSize]T
	len     int
	lenLast int // number of live elements in the last page.
}

// NewTable returns an empty Table.
func NewTable[T any]() Table[T] {
	return Table[T]{}
}

// Allocate appends a new zero-valued T and returns a pointer to it along
// with its index.
func (t *Table[T]) Allocate() (*T, int) {
	if len(t.pages) == 0 || t.lenLast == pageSize {
		t.pages = append(t.pages, new([pageSize]T))
		t.lenLast = 0
	}
	page := t.pages[len(t.pages)-1]
	ptr := &page[t.lenLast]
	idx := t.len
	t.lenLast++
	t.len++
	return ptr, idx
}

// View returns a pointer to the element at idx. Panics if idx is out of
// range, mirroring the prior art's arena pool semantics (no bounds-checked
// error path; this is a programmer error, not a recoverable condition).
func (t *Table[T]) View(idx int) *T {
	page, off := idx/pageSize, idx%pageSize
	return &t.pages[page][off]
}

// Len returns the number of allocated elements.
func (t *Table[T]) Len() int { return t.len }

// Reset clears the table for reuse, dropping references held by T so
// the underlying pages can be garbage collected if the Table itself is
// dropped, but keeping the page slice capacity for the next function.
func (t *Table[T]) Reset() {
	for _, p := range t.pages {
		var zero [pageSize]T
		*p = zero
	}
	t.pages = t.pages[:0]
	t.len = 0
	t.lenLast = pageSize
}
