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

// Package engine implements the reduction pipeline of the active storage
// proxy: it interprets a raw byte range fetched from an object store as a
// typed N-dimensional array, applies an optional per-axis strided selection,
// folds the selected elements with one of the supported reducers, and
// re-encodes the result for the caller.
//
// The pipeline is stateless; every entry point operates only on its
// arguments, so the package is safe for concurrent use across requests.
package engine

import "fmt"

// DType identifies one of the numeric element types the proxy can operate on.
// The set is closed: every reducer is dispatched over exactly these six types.
type DType int

const (
	Int32 DType = iota
	Int64
	Uint32
	Uint64
	Float32
	Float64
)

var dtypeNames = map[DType]string{
	Int32:   "int32",
	Int64:   "int64",
	Uint32:  "uint32",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
}

var dtypeSizes = map[DType]int{
	Int32:   4,
	Int64:   8,
	Uint32:  4,
	Uint64:  8,
	Float32: 4,
	Float64: 8,
}

// ParseDType maps a wire-format dtype name onto a DType.
// Unrecognised names yield a ValidationError of kind BadDtype.
func ParseDType(name string) (DType, error) {
	for d, n := range dtypeNames {
		if n == name {
			return d, nil
		}
	}
	return 0, &ValidationError{
		Kind:    BadDtype,
		Message: fmt.Sprintf("unsupported dtype %q, must be one of int32, int64, uint32, uint64, float32, float64", name),
	}
}

// Size returns the width of one element in bytes.
func (d DType) Size() int {
	return dtypeSizes[d]
}

func (d DType) String() string {
	if n, ok := dtypeNames[d]; ok {
		return n
	}
	return fmt.Sprintf("DType(%d)", int(d))
}

// DTypeNames returns the wire names of all supported dtypes. The boundary
// layer advertises this list in the well-known discovery document.
func DTypeNames() []string {
	return []string{"int32", "int64", "uint32", "uint64", "float32", "float64"}
}

// Order describes the memory layout of a source array.
type Order int

const (
	// RowMajor is C order: the last axis varies fastest.
	RowMajor Order = iota
	// ColumnMajor is Fortran order: the first axis varies fastest.
	ColumnMajor
)

// ParseOrder maps the wire-format order flag ("C" or "F") onto an Order.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "C":
		return RowMajor, nil
	case "F":
		return ColumnMajor, nil
	}
	return 0, &ValidationError{
		Kind:    BadOrder,
		Message: fmt.Sprintf("'order' parameter was %q but must be either 'C' or 'F'", s),
	}
}

func (o Order) String() string {
	if o == ColumnMajor {
		return "F"
	}
	return "C"
}
