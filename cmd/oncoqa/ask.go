package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"oncoqa/internal/manager"
)

type askOptions struct {
	context     string
	contextFile string
	jsonOut     bool
	metrics     bool
	events      bool
}

func newAskCmd(a *app) *cobra.Command {
	var o askOptions
	cmd := &cobra.Command{
		Use:     "ask <question...>",
		Short:   "Answer an oncology question",
		Example: "  oncoqa ask --context \"Stage III colon cancer\" \"Which chemotherapy regimen is standard?\"",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("%w: ask requires a question", errUsage)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.ask(ctx, strings.Join(args, " "), o)
		},
	}
	cmd.Flags().StringVar(&o.context, "context", "", "Clinical context passed with the question")
	cmd.Flags().StringVar(&o.contextFile, "context-file", "", "Read the clinical context from a file")
	cmd.Flags().BoolVar(&o.jsonOut, "json", false, "Print the full response as JSON")
	cmd.Flags().BoolVar(&o.metrics, "metrics", false, "Dump manager metrics (Prometheus text format) to stderr")
	cmd.Flags().BoolVar(&o.events, "events", false, "Dump lifecycle events as JSON lines to stderr")
	return cmd
}

func (a *app) ask(ctx context.Context, question string, o askOptions) error {
	contextText := o.context
	if o.contextFile != "" {
		b, err := os.ReadFile(o.contextFile)
		if err != nil {
			return fmt.Errorf("read context: %w", err)
		}
		contextText = strings.TrimSpace(string(b))
	}

	reg := prometheus.NewRegistry()
	pub := manager.NewMemoryPublisher()
	m := manager.New(a.managerConfig(reg, pub))
	defer func() {
		if err := m.Close(); err != nil {
			a.log.Warn().Err(err).Msg("event=close_error")
		}
	}()

	resp := m.GenerateResponse(ctx, question, contextText)

	if o.events {
		enc := json.NewEncoder(a.stderr)
		for _, e := range pub.Events() {
			_ = enc.Encode(e)
		}
	}
	if o.metrics {
		if err := writeMetrics(a, reg); err != nil {
			return err
		}
	}

	if o.jsonOut {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
	} else if resp.OK() {
		fmt.Fprintln(a.stdout, resp.Text)
	}
	if !resp.OK() {
		return fmt.Errorf("%s", resp.Error)
	}
	return nil
}

func writeMetrics(a *app, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(a.stderr, mf); err != nil {
			return err
		}
	}
	return nil
}
