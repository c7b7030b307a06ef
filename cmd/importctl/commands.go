package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/imrishuroy/go-product-importflow/internal/app"
	"github.com/imrishuroy/go-product-importflow/internal/catalog"
	"github.com/imrishuroy/go-product-importflow/internal/config"
	"github.com/imrishuroy/go-product-importflow/internal/identity"
	"github.com/imrishuroy/go-product-importflow/internal/lifecycle"
	"github.com/imrishuroy/go-product-importflow/internal/validation"
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

type rootOptions struct {
	format  string
	verbose bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "importctl",
		Short: "Operate the product import flow against its snapshot",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "text" && opts.format != "json" {
				return fmt.Errorf("invalid format %q: must be text or json", opts.format)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	cmd.AddCommand(newSweepCommand(opts))
	cmd.AddCommand(newInspectCommand(opts))
	cmd.AddCommand(newSubmitCommand(opts))
	return cmd
}

// open loads config, builds the components and restores the snapshot.
func (o *rootOptions) open(cmd *cobra.Command, needMarket bool) (*app.App, error) {
	load := config.LoadForTool
	if needMarket {
		load = config.Load
	}
	cfg, err := load()
	if err != nil {
		return nil, &exitError{code: 2, err: err}
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	a, err := app.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, &exitError{code: 2, err: err}
	}
	if needMarket && a.Coordinator == nil {
		return nil, &exitError{code: 2, err: fmt.Errorf("MARKET_API_TOKEN is not set")}
	}
	if _, err := a.Reconciler.Load(cmd.Context()); err != nil {
		return nil, &exitError{code: 2, err: err}
	}
	return a, nil
}

func (o *rootOptions) writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSweepCommand(opts *rootOptions) *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Poll every UPLOADED import once and save the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd, true)
			if err != nil {
				return err
			}
			if concurrency <= 0 {
				concurrency = a.Config.Sweep.Concurrency
			}
			report, err := a.Coordinator.Sweep(cmd.Context(), concurrency)
			if err != nil {
				return err
			}
			if _, err := a.Reconciler.Save(context.WithoutCancel(cmd.Context())); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if opts.format == "json" {
				return opts.writeJSON(w, report)
			}
			fmt.Fprintf(w, "checked %d: finished %d, aborted %d, pending %d, conflicts %d, failed %d\n",
				report.Checked, report.Finished, report.Aborted, report.Pending, report.Conflicts, report.Failed)
			for _, it := range report.Items {
				if it.Error != "" {
					fmt.Fprintf(w, "  %s %s: %s\n", it.ID, it.Code, it.Error)
				}
			}
			if report.Failed > 0 {
				return &exitError{code: 1, err: fmt.Errorf("%d checks failed", report.Failed)}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "parallel marketplace polls (default SWEEP_CONCURRENCY)")
	return cmd
}

type inspectEntry struct {
	ID     uuid.UUID             `json:"id"`
	SKU    string                `json:"sku"`
	Code   string                `json:"code,omitempty"`
	Status catalog.Status        `json:"status,omitempty"`
	Result *catalog.UploadResult `json:"result,omitempty"`
}

func newInspectCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [id]",
		Short: "Show the saved lifecycle state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd, false)
			if err != nil {
				return err
			}
			entries := a.Store.Entries()
			slices.SortFunc(entries, func(x, y lifecycle.Entry) int {
				return strings.Compare(x.Product.SKU, y.Product.SKU)
			})

			if len(args) == 1 {
				id, err := identity.Parse(args[0])
				if err != nil {
					return &exitError{code: 2, err: err}
				}
				i := slices.IndexFunc(entries, func(e lifecycle.Entry) bool { return e.ID == id })
				if i < 0 {
					return &exitError{code: 1, err: fmt.Errorf("%s: %w", id, lifecycle.ErrUnknownIdentity)}
				}
				entries = entries[i : i+1]
			}

			out := make([]inspectEntry, 0, len(entries))
			for _, e := range entries {
				out = append(out, inspectEntry{ID: e.ID, SKU: e.Product.SKU, Code: e.Code, Status: e.Status, Result: e.Result})
			}

			w := cmd.OutOrStdout()
			if opts.format == "json" {
				if len(args) == 1 {
					return opts.writeJSON(w, out[0])
				}
				return opts.writeJSON(w, struct {
					Counts  lifecycle.Counts `json:"counts"`
					Entries []inspectEntry   `json:"entries"`
				}{a.Store.Counts(), out})
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSKU\tCODE\tSTATUS\tRESULT")
			for _, e := range out {
				res := "-"
				if e.Result != nil {
					res = fmt.Sprintf("%d/%d errors", e.Result.Errors, e.Result.Total)
				}
				st := string(e.Status)
				if st == "" {
					st = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.SKU, e.Code, st, res)
			}
			return tw.Flush()
		},
	}
}

type submitOutcome struct {
	SKU    string            `json:"sku"`
	ID     string            `json:"id,omitempty"`
	Code   string            `json:"code,omitempty"`
	Error  string            `json:"error,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func newSubmitCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <file>",
		Short: "Submit a JSON array of products and save the snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			var batch []catalog.Product
			if err := json.Unmarshal(data, &batch); err != nil {
				return &exitError{code: 2, err: fmt.Errorf("decode %s: %w", args[0], err)}
			}
			if len(batch) == 0 {
				return &exitError{code: 2, err: validation.ErrEmptyBatch}
			}

			a, err := opts.open(cmd, true)
			if err != nil {
				return err
			}

			v := validation.New()
			out := make([]submitOutcome, 0, len(batch))
			failed := 0
			for _, p := range batch {
				o := submitOutcome{SKU: p.SKU}
				if fields := validation.Product(v, p); fields != nil {
					o.Error, o.Fields = "validation failed", fields
					failed++
					out = append(out, o)
					continue
				}
				sub, err := a.Coordinator.Submit(cmd.Context(), p)
				if sub.ID != uuid.Nil {
					o.ID = sub.ID.String()
				}
				o.Code = sub.Code
				if err != nil {
					o.Error = err.Error()
					failed++
				}
				out = append(out, o)
			}

			if _, err := a.Reconciler.Save(context.WithoutCancel(cmd.Context())); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if opts.format == "json" {
				if err := opts.writeJSON(w, out); err != nil {
					return err
				}
			} else {
				for _, o := range out {
					if o.Error != "" {
						fmt.Fprintf(w, "%s\tFAILED\t%s\n", o.SKU, o.Error)
						continue
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", o.SKU, o.ID, o.Code)
				}
			}
			if failed > 0 {
				return &exitError{code: 1, err: fmt.Errorf("%d of %d products not submitted", failed, len(batch))}
			}
			return nil
		},
	}
}
