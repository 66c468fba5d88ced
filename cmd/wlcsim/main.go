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

// Command wlcsim runs the WLC poller against a scripted listener.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	wlc "github.com/ZaparooProject/go-wlc"
	"github.com/ZaparooProject/go-wlc/simulator"
	"github.com/ZaparooProject/go-wlc/trace"
)

var errDiscoveryRejected = errors.New("listener is not WLC capable")

type config struct {
	scenarioPath string
	configPath   string
	tracePath    string
	logDir       string
	debug        bool
	interactive  bool
}

// Package-level flag variables
var (
	flagScenario    string
	flagConfig      string
	flagTrace       string
	flagLogDir      string
	flagDebug       bool
	flagInteractive bool
)

func init() {
	flag.StringVar(&flagScenario, "scenario", "", "Listener scenario YAML file (required)")
	flag.StringVar(&flagConfig, "config", "", "Poller config YAML file (defaults if empty)")
	flag.StringVar(&flagTrace, "trace", "", "Append a CBOR protocol trace to this file")
	flag.StringVar(&flagLogDir, "log-dir", "", "Write a session debug log into this directory")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
	flag.BoolVar(&flagInteractive, "interactive", false, "Open a console to drive the listener")
}

func parseConfig() *config {
	cfg := &config{
		scenarioPath: flagScenario,
		configPath:   flagConfig,
		tracePath:    flagTrace,
		logDir:       flagLogDir,
		debug:        flagDebug,
		interactive:  flagInteractive,
	}

	if cfg.debug {
		wlc.SetDebugEnabled(true)
	}

	return cfg
}

func loadPollerConfig(path string) (*wlc.Config, error) {
	if path == "" {
		return wlc.DefaultConfig(), nil
	}
	pollerCfg, err := wlc.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load poller config: %w", err)
	}
	return pollerCfg, nil
}

func printSnapshot(w io.Writer, s wlc.Snapshot) {
	_, _ = fmt.Fprintf(w, "[%s] %s battery=%d power=%d voltage=%d temp=%d/%d vendor=%d\n",
		time.Now().Format("15:04:05.000"), s.State, s.BatteryLevel, s.ReceivePower,
		s.ReceiveVoltage, s.BatteryTemperature, s.ListenerTemperature, s.VendorID)
}

func run(ctx context.Context, cfg *config) error {
	if cfg.scenarioPath == "" {
		return errors.New("-scenario is required")
	}

	scenario, err := simulator.LoadScenario(cfg.scenarioPath)
	if err != nil {
		return err
	}
	pollerCfg, err := loadPollerConfig(cfg.configPath)
	if err != nil {
		return err
	}

	if cfg.logDir != "" {
		path, logErr := wlc.InitSessionLog(cfg.logDir)
		if logErr != nil {
			return fmt.Errorf("failed to open session log: %w", logErr)
		}
		defer func() {
			if closeErr := wlc.CloseSessionLog(); closeErr != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Failed to close session log: %v\n", closeErr)
			}
		}()
		_, _ = fmt.Printf("Session log: %s\n", path)
	}

	listener, err := simulator.New(scenario)
	if err != nil {
		return fmt.Errorf("failed to build listener: %w", err)
	}
	defer listener.Close()

	var out io.Writer = os.Stdout
	var con *console
	if cfg.interactive {
		con, err = newConsole(listener)
		if err != nil {
			return err
		}
		defer con.close()
		out = con.stdout()
	}

	ended := make(chan struct{})
	opts := []wlc.Option{
		wlc.WithTelemetryListener(func(s wlc.Snapshot) { printSnapshot(out, s) }),
		wlc.WithSessionEnded(func() { close(ended) }),
	}
	if cfg.tracePath != "" {
		fileLogger, traceErr := trace.NewFileLogger(cfg.tracePath)
		if traceErr != nil {
			return traceErr
		}
		defer func() {
			if closeErr := fileLogger.Close(); closeErr != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Failed to close trace: %v\n", closeErr)
			}
		}()
		opts = append(opts, wlc.WithTracer(fileLogger))
	}

	ctrl := wlc.NewController(pollerCfg, opts...)
	listener.OnTransferStopped(ctrl.OnTransferStopped)

	name := scenario.Name
	if name == "" {
		name = cfg.scenarioPath
	}
	_, _ = fmt.Fprintf(out, "Listener %q entered the field\n", name)

	if !ctrl.CheckCapability(listener.Discovery()) {
		return errDiscoveryRejected
	}
	if !ctrl.Start(ctx, listener.Transport()) {
		return errors.New("radio refused to enable wireless charging")
	}

	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if stopErr := ctrl.Stop(stopCtx); stopErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to stop session: %v\n", stopErr)
		}
	}()

	if con != nil {
		return con.run(ctx, ctrl, ended)
	}

	select {
	case <-ended:
		printMetrics(out, ctrl.Metrics(), listener.Status())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func printMetrics(w io.Writer, m wlc.SessionMetrics, st simulator.Status) {
	_, _ = fmt.Fprintf(w, "Session ended: steps=%d read_errors=%d write_errors=%d radio_failures=%d\n",
		m.Steps, m.ReadErrors, m.WriteErrors, m.RadioFailures)
	_, _ = fmt.Fprintf(w, "Listener: reads=%d transfers=%d power_info=%d acks=%d removed=%t\n",
		st.Served, st.Transfers, len(st.PowerInfos), st.Acks, st.Removed)
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg := parseConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
