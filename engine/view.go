// Copyright 2025 ActiveStore
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

// LogicalArray is a canonical row-major view over a raw byte buffer. It
// borrows the buffer without copying; ordering normalisation happens here and
// nowhere else: the source order is folded into the element strides, so every
// consumer addresses elements by multi-index in row-major terms regardless of
// how the source laid them out.
type LogicalArray struct {
	buf   []byte
	dtype DType
	shape []int
	// strides holds the element stride of each axis under the source order.
	strides []int
}

// NewLogicalArray builds the canonical view for a fetched byte range. The
// shape passed in must already be resolved via EffectiveShape, so the buffer
// length is known to match.
func NewLogicalArray(buf []byte, dtype DType, shape []int, order Order) *LogicalArray {
	strides := make([]int, len(shape))
	if order == ColumnMajor {
		acc := 1
		for i := 0; i < len(shape); i++ {
			strides[i] = acc
			acc *= shape[i]
		}
	} else {
		acc := 1
		for i := len(shape) - 1; i >= 0; i-- {
			strides[i] = acc
			acc *= shape[i]
		}
	}
	return &LogicalArray{buf: buf, dtype: dtype, shape: shape, strides: strides}
}

// DType returns the element type of the array.
func (la *LogicalArray) DType() DType {
	return la.dtype
}

// Shape returns the logical extents of the array.
func (la *LogicalArray) Shape() []int {
	return la.shape
}

// offsetOf maps a logical multi-index onto the element's byte offset in the
// source buffer.
func (la *LogicalArray) offsetOf(idx []int) int {
	off := 0
	for i, v := range idx {
		off += v * la.strides[i]
	}
	return off * la.dtype.Size()
}

// elemBytes returns the raw little-endian bytes of the element at idx.
func (la *LogicalArray) elemBytes(idx []int) []byte {
	off := la.offsetOf(idx)
	return la.buf[off : off+la.dtype.Size()]
}

// SelectionIter walks a selection in row-major nesting order: the outermost
// axis varies slowest, each axis stepping from start to end inclusive by its
// stride. It is lazy and forward-only; nothing outside the selection is ever
// touched, so peak memory tracks the selection rather than the fetched chunk.
type SelectionIter struct {
	la      *LogicalArray
	sel     SelectionSpec
	idx     []int
	started bool
	done    bool
}

// Iter starts a traversal of the given (already validated) selection.
func (la *LogicalArray) Iter(sel SelectionSpec) *SelectionIter {
	it := &SelectionIter{la: la, sel: sel, idx: make([]int, len(sel))}
	if sel.NumElements() == 0 || len(la.buf) == 0 {
		it.done = true
	}
	return it
}

// Next advances to the next selected element. It must be called before the
// first access; it returns false once the selection is exhausted.
func (it *SelectionIter) Next() bool {
	if it.done {
		return false
	}
	if !it.started {
		it.started = true
		for i, r := range it.sel {
			it.idx[i] = r.Start
		}
		return true
	}
	// Odometer increment, innermost axis first.
	for axis := len(it.sel) - 1; axis >= 0; axis-- {
		it.idx[axis] += it.sel[axis].Stride
		if it.idx[axis] <= it.sel[axis].End {
			return true
		}
		it.idx[axis] = it.sel[axis].Start
	}
	it.done = true
	return false
}

// Index returns the current multi-index. The slice is reused between calls;
// callers that retain it must copy.
func (it *SelectionIter) Index() []int {
	return it.idx
}

// Bytes returns the raw little-endian bytes of the current element.
func (it *SelectionIter) Bytes() []byte {
	return it.la.elemBytes(it.idx)
}
