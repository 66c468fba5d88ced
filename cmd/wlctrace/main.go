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

// Command wlctrace prints a CBOR protocol trace written by wlcsim.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ZaparooProject/go-wlc/trace"
)

type config struct {
	session string
	kinds   string
	path    string
}

var (
	flagSession string
	flagKinds   string
)

func init() {
	flag.StringVar(&flagSession, "session", "", "Only print events of this session ID")
	flag.StringVar(&flagKinds, "kind", "", "Comma separated event kinds to print (record,state,signal,action,error,session)")
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] trace.cbor\n", os.Args[0])
		flag.PrintDefaults()
	}
}

func parseKinds(list string) (map[trace.Kind]bool, error) {
	if list == "" {
		return nil, nil
	}
	kinds := make(map[trace.Kind]bool)
	for _, name := range strings.Split(list, ",") {
		kind, ok := trace.ParseKind(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown event kind %q", name)
		}
		kinds[kind] = true
	}
	return kinds, nil
}

func dump(w io.Writer, r *trace.Reader, kinds map[trace.Kind]bool) (int, error) {
	printed := 0
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return printed, nil
		}
		if err != nil {
			return printed, err
		}
		if kinds != nil && !kinds[ev.Kind] {
			continue
		}
		_, _ = fmt.Fprintln(w, ev.String())
		printed++
	}
}

func run(cfg *config, w io.Writer) error {
	if cfg.path == "" {
		return errors.New("trace file argument is required")
	}
	kinds, err := parseKinds(cfg.kinds)
	if err != nil {
		return err
	}

	r, err := trace.OpenFile(cfg.path)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.Close()
	}()
	if cfg.session != "" {
		r.OnlySession(cfg.session)
	}

	n, err := dump(w, r, kinds)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "%d events\n", n)
	return nil
}

func main() {
	flag.Parse()
	cfg := &config{
		session: flagSession,
		kinds:   flagKinds,
		path:    flag.Arg(0),
	}
	if err := run(cfg, os.Stdout); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
