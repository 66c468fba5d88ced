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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	wlc "github.com/ZaparooProject/go-wlc"
	"github.com/ZaparooProject/go-wlc/simulator"
	"github.com/chzyer/readline"
)

// sessionControl is the part of wlc.Controller the console drives
type sessionControl interface {
	Pause()
	Resume()
	WakeNow()
	ForceFull()
	Stop(ctx context.Context) error
	IsActive() bool
	Snapshot() wlc.Snapshot
	State() wlc.SessionState
	Metrics() wlc.SessionMetrics
}

// listenerControl is the part of simulator.Listener the console drives
type listenerControl interface {
	FOD() bool
	Remove()
	Status() simulator.Status
}

type console struct {
	rl       *readline.Instance
	listener listenerControl
}

func newConsole(listener listenerControl) (*console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "wlc> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &console{rl: rl, listener: listener}, nil
}

// stdout coordinates telemetry output with the prompt
func (c *console) stdout() io.Writer {
	return c.rl.Stdout()
}

func (c *console) close() {
	_ = c.rl.Close()
}

// run reads commands until stop, EOF, ctx cancellation or the session ending
func (c *console) run(ctx context.Context, ctrl sessionControl, ended <-chan struct{}) error {
	go func() {
		select {
		case <-ended:
			_, _ = fmt.Fprintln(c.rl.Stdout(), "Session ended, press enter to exit")
		case <-ctx.Done():
		}
	}()

	c.printHelp()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ended:
			return nil
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			_, _ = fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			return nil
		}

		if quit := c.dispatch(ctx, ctrl, line); quit {
			return nil
		}
	}
}

// dispatch runs one command line and reports whether the console should exit
func (c *console) dispatch(ctx context.Context, ctrl sessionControl, line string) bool {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return false
	}
	out := c.rl.Stdout()

	switch strings.ToLower(fields[0]) {
	case "help", "?":
		c.printHelp()
	case "status", "s":
		printStatus(out, ctrl, c.listener.Status())
	case "fod":
		if !c.listener.FOD() {
			_, _ = fmt.Fprintln(out, "No power transfer running")
		}
	case "remove":
		c.listener.Remove()
	case "pause":
		ctrl.Pause()
	case "resume":
		ctrl.Resume()
	case "wake":
		ctrl.WakeNow()
	case "full":
		ctrl.ForceFull()
	case "stop", "quit", "exit", "q":
		stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := ctrl.Stop(stopCtx); err != nil {
			_, _ = fmt.Fprintf(out, "Stop failed: %v\n", err)
		}
		return true
	default:
		_, _ = fmt.Fprintf(out, "Unknown command %q, type help\n", fields[0])
	}
	return false
}

func printStatus(w io.Writer, ctrl sessionControl, st simulator.Status) {
	state := ctrl.State()
	snap := ctrl.Snapshot()
	m := ctrl.Metrics()

	_, _ = fmt.Fprintf(w, "Session:   active=%t state=%s charging=%t seq=%d retries=%d/%d\n",
		ctrl.IsActive(), state.State, state.ChargingActive, state.LastSequence,
		state.NegoRetry, state.CtlRetry)
	_, _ = fmt.Fprintf(w, "Telemetry: %s battery=%d power=%d voltage=%d vendor=%d\n",
		snap.State, snap.BatteryLevel, snap.ReceivePower, snap.ReceiveVoltage, snap.VendorID)
	_, _ = fmt.Fprintf(w, "Metrics:   steps=%d read_errors=%d write_errors=%d radio_failures=%d last_step=%v\n",
		m.Steps, m.ReadErrors, m.WriteErrors, m.RadioFailures, m.LastStepLatency)
	_, _ = fmt.Fprintf(w, "Listener:  step=%d reads=%d transfers=%d charging=%t removed=%t\n",
		st.Step, st.Served, st.Transfers, st.Charging, st.Removed)
}

func (c *console) printHelp() {
	_, _ = fmt.Fprint(c.rl.Stdout(), `Commands:
  status   show session, telemetry and listener state
  fod      end the running transfer with a foreign object
  remove   take the listener out of the field
  pause    hold the poller before its next step
  resume   release a paused poller
  wake     cut the current wait short
  full     end the session as battery full
  stop     stop the session and exit
`)
}
