// Copyright 2025 ActiveStore
// SPDX-License-Identifier: Apache-2.0

package engine

// Reduction is the boundary-facing outcome of a full pipeline run: the
// encoded payload plus the metadata the boundary layer exposes as response
// headers. It owns its payload; the fetched buffer can be released once a
// Reduction exists.
type Reduction struct {
	DType   string
	Shape   []int
	Payload []byte
}

// Run executes the in-memory half of the pipeline over an already fetched
// byte range: resolve the effective shape, validate the selection, build the
// canonical view, reduce, and encode in the caller's declared order. It is a
// pure function of its arguments and never returns a partial result.
func Run(buf []byte, desc *ArrayDescriptor, sel SelectionSpec, op Reducer) (*Reduction, error) {
	shape, err := desc.EffectiveShape(len(buf))
	if err != nil {
		return nil, err
	}

	sel, err = ValidateSelection(sel, shape)
	if err != nil {
		return nil, err
	}

	view := NewLogicalArray(buf, desc.DType, shape, desc.Order)

	res, err := Reduce(view, sel, op)
	if err != nil {
		return nil, err
	}

	payload, err := Encode(res, desc.Order)
	if err != nil {
		return nil, err
	}

	return &Reduction{
		DType:   res.DType.String(),
		Shape:   res.Shape,
		Payload: payload,
	}, nil
}
