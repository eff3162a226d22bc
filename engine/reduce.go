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

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Reducer names a reduction operation.
type Reducer string

const (
	ReduceSum    Reducer = "sum"
	ReduceMin    Reducer = "min"
	ReduceMax    Reducer = "max"
	ReduceCount  Reducer = "count"
	ReduceSelect Reducer = "select"
	ReduceMean   Reducer = "mean"
)

// ParseReducer maps an operation name onto a Reducer.
func ParseReducer(name string) (Reducer, error) {
	switch Reducer(name) {
	case ReduceSum, ReduceMin, ReduceMax, ReduceCount, ReduceSelect, ReduceMean:
		return Reducer(name), nil
	}
	return "", fmt.Errorf("unknown reducer %q", name)
}

// ReducerNames returns the names of all supported reducers, advertised in the
// well-known discovery document.
func ReducerNames() []string {
	return []string{"sum", "min", "max", "count", "select", "mean"}
}

// Result is the outcome of a reduction: a dense row-major buffer plus the
// metadata the caller needs to reinterpret it. Scalar reducers produce an
// empty shape; Select produces the selection's per-axis element counts.
type Result struct {
	DType DType
	Shape []int
	// data holds the result elements in row-major order, little-endian.
	data []byte
}

// NumBytes returns the size of the encoded result payload.
func (r *Result) NumBytes() int {
	return len(r.data)
}

// number is the closed set of element domains reducers are dispatched over.
type number interface {
	~int32 | ~int64 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// domain bundles the per-type codec and semantics a generic fold needs:
// loading a value from little-endian bytes, storing one back, and detecting
// NaN for the floating point types (isNaN is always false for integers).
type domain[T number] struct {
	load  func([]byte) T
	store func([]byte, T)
	isNaN func(T) bool
}

func notNaN[T number](T) bool { return false }

var (
	int32Domain = domain[int32]{
		load:  func(b []byte) int32 { return int32(binary.LittleEndian.Uint32(b)) },
		store: func(b []byte, v int32) { binary.LittleEndian.PutUint32(b, uint32(v)) },
		isNaN: notNaN[int32],
	}
	int64Domain = domain[int64]{
		load:  func(b []byte) int64 { return int64(binary.LittleEndian.Uint64(b)) },
		store: func(b []byte, v int64) { binary.LittleEndian.PutUint64(b, uint64(v)) },
		isNaN: notNaN[int64],
	}
	uint32Domain = domain[uint32]{
		load:  binary.LittleEndian.Uint32,
		store: binary.LittleEndian.PutUint32,
		isNaN: notNaN[uint32],
	}
	uint64Domain = domain[uint64]{
		load:  binary.LittleEndian.Uint64,
		store: binary.LittleEndian.PutUint64,
		isNaN: notNaN[uint64],
	}
	float32Domain = domain[float32]{
		load:  func(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) },
		store: func(b []byte, v float32) { binary.LittleEndian.PutUint32(b, math.Float32bits(v)) },
		isNaN: func(v float32) bool { return v != v },
	}
	float64Domain = domain[float64]{
		load:  func(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) },
		store: func(b []byte, v float64) { binary.LittleEndian.PutUint64(b, math.Float64bits(v)) },
		isNaN: func(v float64) bool { return v != v },
	}
)

// Reduce applies the reducer to the elements the selection picks out of the
// array. The selection must already be validated against the array's shape.
//
// Numeric semantics, per element type:
//   - Sum accumulates in the source domain; integer overflow wraps at the
//     native width, there is no widening.
//   - Min and Max follow IEEE-754 propagation for floats: any NaN in the
//     selection makes the result NaN. A selection of zero elements fails
//     with an EmptySelection validation error since no identity exists.
//   - Count returns the number of visited elements as int64.
//   - Select materialises the selected elements as a dense row-major
//     sub-array shaped by the selection's per-axis counts.
//   - Mean accumulates the sum in float64 and casts the quotient back to
//     the source dtype; like Min/Max it rejects an empty selection.
func Reduce(la *LogicalArray, sel SelectionSpec, op Reducer) (*Result, error) {
	switch op {
	case ReduceCount:
		return reduceCount(la, sel), nil
	case ReduceSelect:
		return reduceSelect(la, sel), nil
	}

	switch la.DType() {
	case Int32:
		return reduceTyped(la, sel, op, int32Domain)
	case Int64:
		return reduceTyped(la, sel, op, int64Domain)
	case Uint32:
		return reduceTyped(la, sel, op, uint32Domain)
	case Uint64:
		return reduceTyped(la, sel, op, uint64Domain)
	case Float32:
		return reduceTyped(la, sel, op, float32Domain)
	case Float64:
		return reduceTyped(la, sel, op, float64Domain)
	}
	return nil, fmt.Errorf("unsupported dtype %s", la.DType())
}

// reduceCount counts visited elements without decoding them.
func reduceCount(la *LogicalArray, sel SelectionSpec) *Result {
	var n int64
	for it := la.Iter(sel); it.Next(); {
		n++
	}
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, uint64(n))
	return &Result{DType: Int64, Shape: nil, data: out}
}

// reduceSelect copies the selected elements into a dense row-major buffer.
// The enumeration order of the iterator is exactly the row-major order of the
// result, so the copy is a straight append.
func reduceSelect(la *LogicalArray, sel SelectionSpec) *Result {
	width := la.DType().Size()
	out := make([]byte, 0, sel.NumElements()*width)
	for it := la.Iter(sel); it.Next(); {
		out = append(out, it.Bytes()...)
	}
	return &Result{DType: la.DType(), Shape: sel.ResultShape(), data: out}
}

// reduceTyped is the single fold all scalar reducers share, parameterised
// over the numeric domain.
func reduceTyped[T number](la *LogicalArray, sel SelectionSpec, op Reducer, d domain[T]) (*Result, error) {
	it := la.Iter(sel)

	switch op {
	case ReduceSum:
		var acc T
		for it.Next() {
			acc += d.load(it.Bytes())
		}
		return scalarResult(la.DType(), d, acc), nil

	case ReduceMin, ReduceMax:
		if !it.Next() {
			return nil, &ValidationError{
				Kind:    EmptySelection,
				Message: fmt.Sprintf("%s of an empty selection is undefined", op),
			}
		}
		acc := d.load(it.Bytes())
		for it.Next() {
			v := d.load(it.Bytes())
			if d.isNaN(v) {
				acc = v
				continue
			}
			if d.isNaN(acc) {
				continue
			}
			if (op == ReduceMin && v < acc) || (op == ReduceMax && v > acc) {
				acc = v
			}
		}
		return scalarResult(la.DType(), d, acc), nil

	case ReduceMean:
		// NaN elements poison the float64 accumulator on their own; the
		// integer domains can never contribute one.
		var sum float64
		var n int64
		for it.Next() {
			sum += float64(d.load(it.Bytes()))
			n++
		}
		if n == 0 {
			return nil, &ValidationError{
				Kind:    EmptySelection,
				Message: "mean of an empty selection is undefined",
			}
		}
		return scalarResult(la.DType(), d, T(sum/float64(n))), nil
	}
	return nil, fmt.Errorf("unknown reducer %q", op)
}

func scalarResult[T number](dt DType, d domain[T], v T) *Result {
	out := make([]byte, dt.Size())
	d.store(out, v)
	return &Result{DType: dt, Shape: nil, data: out}
}
