package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"saldo/internal/core"
	"saldo/internal/currency"
	"saldo/internal/ledger"
	"saldo/internal/recurrence"
)

// store is the part of the SQLite repository the commands work on.
type store interface {
	LoadSnapshot(ctx context.Context) (core.Snapshot, bool, error)
	SaveSnapshot(ctx context.Context, snap core.Snapshot) error
	LoadRates(ctx context.Context) (currency.Table, bool, error)
}

var errNoSnapshot = errors.New("no ledger snapshot stored yet")

type app struct {
	dbPath    string
	reference string
	now       func() time.Time
	open      func(path string) (store, func() error, error)
}

// withStore opens the database for the duration of fn.
func (a *app) withStore(ctx context.Context, fn func(ctx context.Context, s store) error) error {
	s, closeFn, err := a.open(a.dbPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", a.dbPath, err)
	}
	if closeFn != nil {
		defer closeFn()
	}
	return fn(ctx, s)
}

func loadSnapshot(ctx context.Context, s store) (core.Snapshot, error) {
	snap, ok, err := s.LoadSnapshot(ctx)
	if err != nil {
		return core.Snapshot{}, err
	}
	if !ok {
		return core.Snapshot{}, errNoSnapshot
	}
	return snap, nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "saldoctl",
		Short:         "Inspect and maintain a saldo ledger database",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", a.dbPath, "SQLite database path")

	root.AddCommand(
		newExportCmd(a),
		newImportCmd(a),
		newRecalcCmd(a),
		newOccurrencesCmd(a),
		newConvertCmd(a),
	)
	return root
}

func newExportCmd(a *app) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the latest ledger snapshot as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(ctx context.Context, s store) error {
				snap, err := loadSnapshot(ctx, s)
				if err != nil {
					return err
				}
				data, err := encodeSnapshot(snap, format)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o600); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "exported version %d to %s\n", snap.Version, output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the ledger with a snapshot file",
		Long: `Replace the ledger with a JSON or YAML snapshot. The format follows the file
extension unless --format is given. Budget spent values are re-derived from
the imported transactions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if format == "" {
				format = formatFromPath(args[0])
			}
			snap, err := decodeSnapshot(data, format)
			if err != nil {
				return err
			}
			if err := snap.Validate(); err != nil {
				return fmt.Errorf("invalid snapshot: %w", err)
			}

			return a.withStore(cmd.Context(), func(ctx context.Context, s store) error {
				engine := ledger.New()
				current, ok, err := s.LoadSnapshot(ctx)
				if err != nil {
					return err
				}
				if ok {
					engine.Restore(current)
				}
				engine.Restore(snap)
				corrected := engine.RecalculateBudgetsSpent()
				if err := s.SaveSnapshot(ctx, engine.Snapshot()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d transactions as version %d, %d budgets corrected\n",
					len(snap.Transactions), engine.Version(), corrected)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "input format: json or yaml")
	return cmd
}

func newRecalcCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "Re-derive budget spent values from the transaction log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(ctx context.Context, s store) error {
				snap, err := loadSnapshot(ctx, s)
				if err != nil {
					return err
				}
				engine := ledger.New(ledger.WithState(ledger.FromSnapshot(snap)))
				corrected := engine.RecalculateBudgetsSpent()
				if corrected > 0 && !dryRun {
					if err := s.SaveSnapshot(ctx, engine.Snapshot()); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d budgets corrected\n", corrected)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without saving")
	return cmd
}

func newOccurrencesCmd(a *app) *cobra.Command {
	var from, to, format string
	var days int
	cmd := &cobra.Command{
		Use:   "occurrences",
		Short: "List upcoming recurring payment occurrences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := core.DateOf(a.now())
			if from != "" {
				d, err := core.ParseDate(from)
				if err != nil {
					return err
				}
				start = d
			}
			end := start.AddDays(days)
			if to != "" {
				d, err := core.ParseDate(to)
				if err != nil {
					return err
				}
				end = d
			}
			if end.Before(start.Time) {
				return core.ErrInvalidWindow
			}

			return a.withStore(cmd.Context(), func(ctx context.Context, s store) error {
				snap, err := loadSnapshot(ctx, s)
				if err != nil {
					return err
				}
				occ := recurrence.Upcoming(snap.RecurringPayments, start, end)
				if format == "json" {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					if occ == nil {
						occ = []recurrence.Occurrence{}
					}
					return enc.Encode(occ)
				}
				return printOccurrences(cmd.OutOrStdout(), occ)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&to, "to", "", "last day (YYYY-MM-DD)")
	cmd.Flags().IntVar(&days, "days", 30, "window length when --to is not given")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table or json")
	return cmd
}

func printOccurrences(w io.Writer, occ []recurrence.Occurrence) error {
	if len(occ) == 0 {
		_, err := fmt.Fprintln(w, "no occurrences")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tNAME\tTYPE\tAMOUNT")
	for _, o := range occ {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Date, o.Name, o.Type, core.FormatAmount(o.Amount, o.Currency))
	}
	return tw.Flush()
}

func newConvertCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "convert AMOUNT FROM TO",
		Short: "Convert an amount with the last stored rate table",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseAmount(args[0])
			if err != nil {
				return fmt.Errorf("amount %q: %w", args[0], err)
			}
			from, to := strings.ToUpper(args[1]), strings.ToUpper(args[2])
			for _, code := range []string{from, to} {
				if err := core.ValidateCurrency(code); err != nil {
					return fmt.Errorf("%q: %w", code, err)
				}
			}

			return a.withStore(cmd.Context(), func(ctx context.Context, s store) error {
				cache := currency.NewCache(a.reference)
				t, ok, err := s.LoadRates(ctx)
				if err != nil {
					return err
				}
				if ok {
					cache.Store(t)
				} else {
					fmt.Fprintln(cmd.ErrOrStderr(), "warning: no stored rate table, using identity rates")
				}
				converted := cache.Latest().Convert(amount, from, to).Round(core.AmountPlaces)
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", core.FormatAmount(amount, from), core.FormatAmount(converted, to))
				return nil
			})
		},
	}
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	}
	return "json"
}

func encodeSnapshot(snap core.Snapshot, format string) ([]byte, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		return yaml.Marshal(snap)
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

func decodeSnapshot(data []byte, format string) (core.Snapshot, error) {
	var snap core.Snapshot
	switch format {
	case "json":
		if err := json.Unmarshal(data, &snap); err != nil {
			return snap, fmt.Errorf("decode JSON snapshot: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &snap); err != nil {
			return snap, fmt.Errorf("decode YAML snapshot: %w", err)
		}
	default:
		return snap, fmt.Errorf("unknown format %q", format)
	}
	return snap, nil
}
