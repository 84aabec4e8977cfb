// SPDX-License-Identifier: MIT
package stream

// blockSource is the cursor the filter graph pulls from. It replays the
// active block sample by sample and, once the block is exhausted, rewinds to
// the start of whichever block is installed at that moment instead of
// terminating. Installation never disturbs the active block, so a block is
// always consumed whole.
//
// The two backing slices are reused across installations; after the first
// few blocks installing and pulling do not allocate.
type blockSource struct {
	active     []float64
	pending    []float64
	hasPending bool
	pos        int
}

// install copies samples into the pending slot. It becomes active at the
// next rewind.
func (s *blockSource) install(samples []float64) {
	s.pending = append(s.pending[:0], samples...)
	s.hasPending = true
}

// installed reports whether any block was ever installed.
func (s *blockSource) installed() bool {
	return s.hasPending || len(s.active) > 0
}

// current returns the length of the most recently installed block.
func (s *blockSource) current() int {
	if s.hasPending {
		return len(s.pending)
	}
	return len(s.active)
}

// Next implements filter.Stream. It must not be called before a block has
// been installed.
func (s *blockSource) Next() float64 {
	if s.pos >= len(s.active) {
		s.rewind()
	}
	x := s.active[s.pos]
	s.pos++
	return x
}

func (s *blockSource) rewind() {
	if s.hasPending {
		s.active, s.pending = s.pending, s.active
		s.hasPending = false
	}
	s.pos = 0
}

// restart makes the next pull start at the beginning of the installed block.
func (s *blockSource) restart() {
	s.pos = len(s.active)
}
