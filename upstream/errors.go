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

package upstream

import (
	"errors"
	"fmt"
)

// ErrUnreachable is returned when the upstream store cannot be reached at
// the network level: connection refused, DNS failure, or a timeout imposed
// by the caller's context or client deadline.
var ErrUnreachable = errors.New("could not connect to configured S3 source")

// UpstreamError carries an error response the upstream store produced. The
// status code and the parsed S3 error document are surfaced unchanged so the
// boundary layer can relay them to the caller.
type UpstreamError struct {
	StatusCode int
	Code       string
	Message    string
	Resource   string
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("upstream returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Message)
}
