// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
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

package trace

import (
	"fmt"
	"os"

	"github.com/ZaparooProject/go-wlc/internal/syncutil"
	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends CBOR events to a file
type FileLogger struct {
	file    *os.File
	encoder *cbor.Encoder
	mu      syncutil.Mutex
	closed  bool
}

// NewFileLogger opens path for appending, creating it if needed
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec // operator-chosen path
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	return &FileLogger{
		file:    f,
		encoder: newEncoder(f),
	}, nil
}

// Log writes the event. Encoding errors are dropped.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	_ = l.encoder.Encode(event)
}

// Close closes the file. Later calls and later Log calls are no-ops.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

var _ Logger = (*FileLogger)(nil)
