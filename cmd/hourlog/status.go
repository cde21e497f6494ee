// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// ProbeStatus is the result of one health probe against a running server.
type ProbeStatus struct {
	Probe  string `json:"probe"`
	OK     bool   `json:"ok"`
	Code   int    `json:"code,omitempty"`
	Body   string `json:"body,omitempty"`
	Error  string `json:"error,omitempty"`
	Millis int64  `json:"latency_ms"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
	timeout    time.Duration
}

var probes = []string{"liveness", "readiness"}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show health of a running hourlog server",
		Long: `Query the liveness and readiness probes on the metrics address of a
running server. Exits non-zero when any probe fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 2*time.Second, "per-probe timeout")
	cmd.Flags().String("metrics-addr", "", "metrics listen address of the server")

	return cmd
}

func runStatus(cmd *cobra.Command, scfg *statusConfig) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	if cfg.Metrics.Addr == "" {
		return oops.Code("STATUS_NO_ADDR").Errorf("metrics.addr is empty; the server exposes no health probes")
	}

	client := &http.Client{Timeout: scfg.timeout}
	statuses := make([]ProbeStatus, 0, len(probes))
	healthy := true
	for _, probe := range probes {
		st := queryProbe(cmd.Context(), client, baseURL(cfg.Metrics.Addr), probe)
		healthy = healthy && st.OK
		statuses = append(statuses, st)
	}

	if scfg.jsonOutput {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return oops.Code("STATUS_RENDER_FAILED").Wrap(err)
		}
		cmd.Println(string(data))
	} else {
		cmd.Print(formatStatusTable(statuses))
	}

	if !healthy {
		return oops.Code("STATUS_UNHEALTHY").With("addr", cfg.Metrics.Addr).Errorf("server is not healthy")
	}
	return nil
}

// baseURL turns a listen address into a URL a client can dial.
func baseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/")
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

func queryProbe(ctx context.Context, client *http.Client, base, probe string) ProbeStatus {
	st := ProbeStatus{Probe: probe}
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/healthz/"+probe, http.NoBody)
	if err != nil {
		st.Error = err.Error()
		st.Millis = time.Since(start).Milliseconds()
		return st
	}
	resp, err := client.Do(req)
	if err != nil {
		st.Error = fmt.Sprintf("failed to connect: %v", err)
		st.Millis = time.Since(start).Milliseconds()
		return st
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	st.Code = resp.StatusCode
	st.Body = strings.TrimSpace(string(body))
	st.OK = resp.StatusCode == http.StatusOK
	st.Millis = time.Since(start).Milliseconds()
	return st
}

func formatStatusTable(statuses []ProbeStatus) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "PROBE\tSTATUS\tCODE\tLATENCY\tDETAIL")
	_, _ = fmt.Fprintln(w, "-----\t------\t----\t-------\t------")
	for _, st := range statuses {
		state := "ok"
		if !st.OK {
			state = "failing"
		}
		code := "-"
		if st.Code != 0 {
			code = fmt.Sprint(st.Code)
		}
		detail := st.Body
		if st.Error != "" {
			detail = st.Error
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%dms\t%s\n", st.Probe, state, code, st.Millis, detail)
	}

	_ = w.Flush()
	return sb.String()
}
