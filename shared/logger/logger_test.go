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

package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"strings"
	"testing"
	"time"
)

// captureEntry runs fn with log output captured and parses the single JSON
// line it writes.
func captureEntry(t *testing.T, fn func()) LogEntry {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	fn()

	output := buf.String()
	jsonStart := strings.Index(output, "{")
	if jsonStart == -1 {
		t.Fatalf("no JSON found in log output: %q", output)
	}

	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(output[jsonStart:])), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\noutput: %s", err, output)
	}
	return entry
}

func TestNew(t *testing.T) {
	l := New("proxy")
	if l.Component != "proxy" {
		t.Errorf("Component = %q, want proxy", l.Component)
	}
	if l.Hostname == "" {
		t.Error("expected hostname to be set")
	}
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		name    string
		logFunc func(*Logger, string, string, map[string]interface{})
		level   LogLevel
	}{
		{"Info", (*Logger).Info, INFO},
		{"Error", (*Logger).Error, ERROR},
		{"Warn", (*Logger).Warn, WARN},
		{"Debug", (*Logger).Debug, DEBUG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New("test-component")
			entry := captureEntry(t, func() {
				tt.logFunc(l, "req-456", "test message", map[string]interface{}{"key": "value"})
			})

			if entry.Level != tt.level {
				t.Errorf("Level = %s, want %s", entry.Level, tt.level)
			}
			if entry.Message != "test message" {
				t.Errorf("Message = %q", entry.Message)
			}
			if entry.RequestID != "req-456" {
				t.Errorf("RequestID = %q", entry.RequestID)
			}
			if entry.Component != "test-component" {
				t.Errorf("Component = %q", entry.Component)
			}
			if entry.Fields["key"] != "value" {
				t.Errorf("Fields = %v", entry.Fields)
			}
			if _, err := time.Parse(time.RFC3339Nano, entry.Timestamp); err != nil {
				t.Errorf("invalid timestamp %q", entry.Timestamp)
			}
		})
	}
}

func TestInfoWithDuration(t *testing.T) {
	l := New("test-component")
	entry := captureEntry(t, func() {
		l.InfoWithDuration("req-456", "request completed", 123.45, map[string]interface{}{
			"path": "/v1/sum/",
		})
	})

	if entry.Level != INFO {
		t.Errorf("Level = %s, want INFO", entry.Level)
	}
	if entry.Fields["duration_ms"] != 123.45 {
		t.Errorf("duration_ms = %v, want 123.45", entry.Fields["duration_ms"])
	}
	if entry.Fields["path"] != "/v1/sum/" {
		t.Errorf("path field = %v", entry.Fields["path"])
	}
}

func TestErrorWithCode(t *testing.T) {
	l := New("test-component")
	entry := captureEntry(t, func() {
		l.ErrorWithCode("req-456", "request failed", 502, &testError{msg: "upstream unreachable"}, nil)
	})

	if entry.Level != ERROR {
		t.Errorf("Level = %s, want ERROR", entry.Level)
	}
	code, ok := entry.Fields["status_code"].(float64)
	if !ok || int(code) != 502 {
		t.Errorf("status_code = %v, want 502", entry.Fields["status_code"])
	}
	if entry.Fields["error"] != "upstream unreachable" {
		t.Errorf("error field = %v", entry.Fields["error"])
	}
}

func TestErrorWithCodeNilError(t *testing.T) {
	l := New("test-component")
	entry := captureEntry(t, func() {
		l.ErrorWithCode("req-456", "request failed", 404, nil, nil)
	})
	if _, present := entry.Fields["error"]; present {
		t.Error("error field should be absent for a nil error")
	}
}

func TestJSONMarshalError(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	l := New("test-component")
	// Channels cannot be marshaled to JSON.
	l.Info("req-456", "test message", map[string]interface{}{"channel": make(chan int)})

	if !strings.Contains(buf.String(), "Failed to marshal log entry") {
		t.Error("expected marshal failure fallback message")
	}
}

type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}

func BenchmarkLog(b *testing.B) {
	l := New("benchmark-component")
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	fields := map[string]interface{}{
		"operation": "sum",
		"duration":  45.67,
		"bytes":     150,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Info("req-456", "processing request", fields)
	}
}
