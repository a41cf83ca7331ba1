package container

import "github.com/bits-and-blooms/bitset"

// BitSet is a domain-named wrapper around bits-and-blooms/bitset for
// visited/reachable/live sets. No other package in this module imports
// it. Wrapping rather than
// importing bitset.BitSet directly at every call site keeps the
// vocabulary ("Add a Block", "Add a VReg") local to this module instead
// of the library's generic "bit" vocabulary.
type BitSet struct {
	bits *bitset.BitSet
}

// NewBitSet returns a BitSet with room for at least n elements.
func NewBitSet(n int) BitSet {
	return BitSet{bits: bitset.New(uint(n))}
}

// Add marks i as present.
func (s *BitSet) Add(i int) { s.bits.Set(uint(i)) }

// Remove clears i.
func (s *BitSet) Remove(i int) { s.bits.Clear(uint(i)) }

// Has reports whether i is present.
func (s BitSet) Has(i int) bool { return s.bits.Test(uint(i)) }

// Union destructively ORs other into s.
func (s *BitSet) Union(other BitSet) { s.bits.InPlaceUnion(other.bits) }

// Intersect destructively ANDs other into s.
func (s *BitSet) Intersect(other BitSet) { s.bits.InPlaceIntersection(other.bits) }

// Count returns the number of set bits.
func (s BitSet) Count() int { return int(s.bits.Count()) }

// Clear resets all bits without releasing the backing storage.
func (s *BitSet) Clear() { s.bits.ClearAll() }

// Each calls f once per set bit, in ascending order. f returning false
// stops the iteration early.
func (s BitSet) Each(f func(i int) bool) {
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		if !f(int(i)) {
			return
		}
	}
}
