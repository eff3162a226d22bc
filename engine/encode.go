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

// Encode serialises a reduction result for the caller. Result buffers are
// kept row-major internally; when the caller declared column-major order the
// payload of a multi-dimensional result is transposed back so the bytes they
// receive match the order they asked for. Scalars and one-dimensional
// results are identical under both orders.
func Encode(res *Result, order Order) ([]byte, error) {
	width := res.DType.Size()
	elems := 1
	for _, dim := range res.Shape {
		elems *= dim
	}
	if len(res.data) != elems*width {
		return nil, &EncodingError{
			Message: fmt.Sprintf("result shape %v of dtype %s requires %d bytes but buffer has %d",
				res.Shape, res.DType, elems*width, len(res.data)),
		}
	}

	if order != ColumnMajor || len(res.Shape) < 2 {
		return res.data, nil
	}

	// Walk the row-major source and scatter each element to its
	// column-major position.
	colStrides := make([]int, len(res.Shape))
	acc := 1
	for i := 0; i < len(res.Shape); i++ {
		colStrides[i] = acc
		acc *= res.Shape[i]
	}

	out := make([]byte, len(res.data))
	idx := make([]int, len(res.Shape))
	for src := 0; src < elems; src++ {
		dst := 0
		for i, v := range idx {
			dst += v * colStrides[i]
		}
		copy(out[dst*width:(dst+1)*width], res.data[src*width:(src+1)*width])

		for axis := len(idx) - 1; axis >= 0; axis-- {
			idx[axis]++
			if idx[axis] < res.Shape[axis] {
				break
			}
			idx[axis] = 0
		}
	}
	return out, nil
}

// ShapeJSON renders a result shape the way the response header expects it,
// e.g. "[2, 3]". A scalar result renders as "[]".
func ShapeJSON(shape []int) string {
	if len(shape) == 0 {
		return "[]"
	}
	s := "["
	for i, dim := range shape {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d", dim)
	}
	return s + "]"
}
