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

package wlc

import (
	"fmt"
	"os"
	"time"

	"github.com/ZaparooProject/go-wlc/internal/syncutil"
)

// debugEnabled controls console output of protocol debug lines
var debugEnabled = false

// logMu serialises writes from the watchdog goroutine and callers
var logMu syncutil.Mutex

func init() {
	if os.Getenv("WLC_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
}

// Debugf prints protocol debug information.
// Always writes to the session log (if initialized) with a timestamp.
// Only prints to the console when debug mode is enabled.
func Debugf(format string, args ...any) {
	emit(fmt.Sprintf(format, args...))
}

// Debugln is the Sprint flavour of Debugf
func Debugln(args ...any) {
	emit(fmt.Sprintln(args...))
}

func emit(message string) {
	if n := len(message); n > 0 && message[n-1] == '\n' {
		message = message[:n-1]
	}

	logMu.Lock()
	defer logMu.Unlock()

	if sessionLogWriter != nil {
		timestamp := time.Now().Format("15:04:05.000")
		_, _ = fmt.Fprintf(sessionLogWriter, "%s DEBUG: %s\n", timestamp, message)
	}

	if debugEnabled {
		_, _ = fmt.Printf("DEBUG: %s\n", message)
	}
}

// SetDebugEnabled allows programmatic control of debug logging
func SetDebugEnabled(enabled bool) {
	logMu.Lock()
	debugEnabled = enabled
	logMu.Unlock()
}

// DebugEnabled reports whether console debug output is on
func DebugEnabled() bool {
	logMu.Lock()
	defer logMu.Unlock()
	return debugEnabled
}
