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

// ValidationKind classifies request validation failures. The boundary layer
// maps every kind onto a 4xx status; none of them is retryable.
type ValidationKind string

const (
	// BadDtype means the dtype name is not one of the supported six.
	BadDtype ValidationKind = "bad_dtype"
	// BadOrder means the order flag is neither "C" nor "F".
	BadOrder ValidationKind = "bad_order"
	// ShapeMismatch means shape, byte size and dtype width are inconsistent.
	ShapeMismatch ValidationKind = "shape_mismatch"
	// SelectionOutOfBounds means a selection triple escapes its axis extent
	// or uses a non-positive stride.
	SelectionOutOfBounds ValidationKind = "selection_out_of_bounds"
	// SelectionDimensionMismatch means the selection has a different number
	// of axes than the shape.
	SelectionDimensionMismatch ValidationKind = "selection_dimension_mismatch"
	// EmptySelection means min, max or mean was requested over zero
	// elements; no identity value exists for those reducers.
	EmptySelection ValidationKind = "empty_selection"
)

// ValidationError reports a request the caller must fix. It is never the
// result of an upstream or internal failure.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// EncodingError reports an inconsistency between the bytes actually received
// from the upstream store and the bytes the descriptor requires. It is an
// internal consistency failure: the result is never silently truncated or
// padded to fit.
type EncodingError struct {
	Message string
}

func (e *EncodingError) Error() string {
	return e.Message
}
