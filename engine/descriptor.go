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

import "fmt"

// ArrayDescriptor describes how to interpret a raw byte buffer as a typed
// N-dimensional array. ByteOffset and ByteSize address the source object;
// the buffer handed to the engine is the already-fetched range, so the
// descriptor's offset has been applied by the time validation runs.
type ArrayDescriptor struct {
	DType DType
	// Shape lists the extent of each axis. Empty means one dimension
	// inferred from the number of bytes received.
	Shape []int
	Order Order
	// ByteOffset is the starting byte within the source object.
	ByteOffset int64
	// ByteSize is the number of bytes to read, 0 meaning to end of object.
	ByteSize int64
}

// AxisRange selects elements along one axis: Start through End inclusive,
// stepping by Stride.
type AxisRange struct {
	Start  int
	End    int
	Stride int
}

// Count returns the number of elements the range selects.
func (a AxisRange) Count() int {
	return (a.End-a.Start)/a.Stride + 1
}

// SelectionSpec restricts which logical elements participate in a reduction,
// one AxisRange per axis of the shape. A nil spec means the full array.
type SelectionSpec []AxisRange

// EffectiveShape resolves the descriptor's shape against the number of bytes
// actually received from the upstream store.
//
// When a shape was declared, the product of its extents times the element
// width must equal both the declared ByteSize (when set) and the received
// byte count: a declared/declared inconsistency is the caller's fault
// (ShapeMismatch) while a declared/received inconsistency means the range
// fetch came back short and is surfaced as an EncodingError, never as a
// truncated result. When no shape was declared the array is one-dimensional
// and its length is inferred from the received bytes, which must then divide
// evenly by the element width.
func (d *ArrayDescriptor) EffectiveShape(gotBytes int) ([]int, error) {
	width := d.DType.Size()

	if len(d.Shape) == 0 {
		if gotBytes%width != 0 {
			return nil, &EncodingError{
				Message: fmt.Sprintf("chunk of %d bytes is not a multiple of %d-byte %s elements", gotBytes, width, d.DType),
			}
		}
		return []int{gotBytes / width}, nil
	}

	elems := 1
	for i, dim := range d.Shape {
		if dim <= 0 {
			return nil, &ValidationError{
				Kind:    ShapeMismatch,
				Message: fmt.Sprintf("shape[%d] = %d, dimensions must be positive", i, dim),
			}
		}
		elems *= dim
	}
	required := elems * width

	if d.ByteSize > 0 && int(d.ByteSize) != required {
		return nil, &ValidationError{
			Kind: ShapeMismatch,
			Message: fmt.Sprintf("shape %v of dtype %s requires %d bytes but size is %d",
				d.Shape, d.DType, required, d.ByteSize),
		}
	}
	if gotBytes != required {
		return nil, &EncodingError{
			Message: fmt.Sprintf("shape %v of dtype %s requires %d bytes but chunk has %d",
				d.Shape, d.DType, required, gotBytes),
		}
	}
	return d.Shape, nil
}

// ValidateSelection checks a selection against a resolved shape and fills in
// the default full-extent range for a nil spec. Each axis must satisfy
// 0 <= start <= end < shape[axis] with stride >= 1.
func ValidateSelection(sel SelectionSpec, shape []int) (SelectionSpec, error) {
	if sel == nil {
		full := make(SelectionSpec, len(shape))
		for i, dim := range shape {
			full[i] = AxisRange{Start: 0, End: dim - 1, Stride: 1}
		}
		return full, nil
	}

	if len(sel) != len(shape) {
		return nil, &ValidationError{
			Kind: SelectionDimensionMismatch,
			Message: fmt.Sprintf("selection has %d axes but shape %v has %d",
				len(sel), shape, len(shape)),
		}
	}

	for i, r := range sel {
		if r.Stride < 1 {
			return nil, &ValidationError{
				Kind:    SelectionOutOfBounds,
				Message: fmt.Sprintf("selection[%d] stride %d must be >= 1", i, r.Stride),
			}
		}
		if r.Start < 0 || r.End < r.Start || r.End >= shape[i] {
			return nil, &ValidationError{
				Kind: SelectionOutOfBounds,
				Message: fmt.Sprintf("selection[%d] = [%d, %d] must satisfy 0 <= start <= end < %d",
					i, r.Start, r.End, shape[i]),
			}
		}
	}
	return sel, nil
}

// ResultShape returns the per-axis element counts of the selection, the
// shape a Select reduction produces.
func (s SelectionSpec) ResultShape() []int {
	shape := make([]int, len(s))
	for i, r := range s {
		shape[i] = r.Count()
	}
	return shape
}

// NumElements returns the total number of elements the selection visits.
func (s SelectionSpec) NumElements() int {
	n := 1
	for _, r := range s {
		n *= r.Count()
	}
	return n
}
