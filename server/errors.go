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

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"activestore/proxy/engine"
	"activestore/proxy/upstream"
)

// detailBody is the JSON error envelope for validation and internal errors.
type detailBody struct {
	Detail string `json:"detail"`
}

// awsErrorBody relays an upstream S3 error document to the caller.
type awsErrorBody struct {
	Code    string `json:"aws_error_code"`
	Message string `json:"aws_error_message"`
	Target  string `json:"aws_target"`
}

// statusFor maps the error taxonomy onto distinct HTTP statuses:
// validation errors are 400, upstream errors relay the upstream's own
// status, unreachable upstreams are 502, and encoding inconsistencies are
// 500. Anything unrecognised is a 500.
func statusFor(err error) int {
	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	var uerr *upstream.UpstreamError
	if errors.As(err, &uerr) {
		return uerr.StatusCode
	}
	if errors.Is(err, upstream.ErrUnreachable) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError renders err with its mapped status. Upstream errors keep the
// S3 error fields; everything else gets a detail envelope.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)

	var uerr *upstream.UpstreamError
	if errors.As(err, &uerr) {
		writeJSON(w, status, awsErrorBody{
			Code:    uerr.Code,
			Message: uerr.Message,
			Target:  uerr.Resource,
		})
		return
	}

	writeJSON(w, status, detailBody{Detail: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
