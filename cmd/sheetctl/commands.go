package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"drawing-interpreter/internal/common/config"
	"drawing-interpreter/internal/common/logging"
	"drawing-interpreter/internal/interpreter/history"
	"drawing-interpreter/internal/interpreter/mapper"
	"drawing-interpreter/internal/interpreter/models"
	"drawing-interpreter/internal/interpreter/parser"
	"drawing-interpreter/internal/interpreter/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ============================================================
// Shared setup
// ============================================================

func loadConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	// the CLI prints results on stdout, so logs go to stderr as console
	cfg.Log.Format = "console"
	log, err := logging.NewWithWriter(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func openHistory(ctx context.Context, dbPath string) (history.Store, func(), error) {
	if dbPath == "" {
		return history.NewMemoryStore(0), func() {}, nil
	}
	db, err := history.OpenSQLite(dbPath)
	if err != nil {
		return nil, nil, err
	}
	store := history.NewSQLiteStore(db)
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// readSheet decodes a JSON sheet, or an SVG sheet when the file name ends
// in .svg. "-" reads JSON from stdin.
func readSheet(in io.Reader, name string) (models.DrawingSheetInput, error) {
	if strings.EqualFold(filepath.Ext(name), ".svg") {
		base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		return parser.ParseSVG(in, base)
	}
	var sheet models.DrawingSheetInput
	if err := json.NewDecoder(in).Decode(&sheet); err != nil {
		return sheet, fmt.Errorf("decode sheet %s: %w", name, err)
	}
	return sheet, nil
}

func openInput(cmd *cobra.Command, name string) (io.ReadCloser, error) {
	if name == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(name)
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ============================================================
// interpret
// ============================================================

func newInterpretCmd() *cobra.Command {
	var (
		out      string
		svgOut   string
		dbPath   string
		unmapped bool
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "interpret <sheet.json|sheet.svg|->",
		Short: "Interpret one drawing sheet",
		Long: `Interpret one drawing sheet and print the result as JSON.

Examples:
  # Interpret an SVG export
  sheetctl interpret A-101.svg

  # Keep the session in a history database and draw the merged plan
  sheetctl interpret --db data/history.db --svg plan.svg A-101.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logging.Sync(log)

			in, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			sheet, err := readSheet(in, args[0])
			in.Close()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			store, closeStore, err := openHistory(ctx, dbPath)
			if err != nil {
				return err
			}
			defer closeStore()

			orch, err := session.NewOrchestrator(
				session.Config{
					Tuning:                cfg.Tuning,
					Workers:               cfg.Pipeline.Workers,
					ProcessUnmappedLayers: cfg.Pipeline.ProcessUnmappedLayers,
				},
				session.Deps{Store: store, Logger: log},
			)
			if err != nil {
				return err
			}

			result, runErr := orch.Interpret(ctx, sheet, session.RunOptions{ProcessUnmappedLayers: unmapped})

			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			if err := writeOutput(cmd, out, append(data, '\n')); err != nil {
				return err
			}

			if svgOut != "" && runErr == nil {
				svg, err := mapper.NewRenderer(0).Render(result)
				if err != nil {
					return err
				}
				if err := os.WriteFile(svgOut, []byte(svg), 0o644); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write the result JSON here instead of stdout")
	cmd.Flags().StringVar(&svgOut, "svg", "", "also draw the merged plan to this SVG file")
	cmd.Flags().StringVar(&dbPath, "db", "", "record the session in this SQLite history database")
	cmd.Flags().BoolVar(&unmapped, "unmapped", false, "also match geometry on unmapped layers")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "cancel the run after this long")
	return cmd
}

// ============================================================
// render
// ============================================================

func newRenderCmd() *cobra.Command {
	var (
		out    string
		margin float64
	)

	cmd := &cobra.Command{
		Use:   "render <result.json|->",
		Short: "Draw an interpretation result as SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			var result models.DrawingInterpretationResult
			if err := json.NewDecoder(in).Decode(&result); err != nil {
				return fmt.Errorf("decode result %s: %w", args[0], err)
			}
			svg, err := mapper.NewRenderer(margin).Render(&result)
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, []byte(svg+"\n"))
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write the SVG here instead of stdout")
	cmd.Flags().Float64Var(&margin, "margin", 0, "padding around the drawing in model units")
	return cmd
}

// ============================================================
// sessions
// ============================================================

func newSessionsCmd() *cobra.Command {
	var (
		dbPath string
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded interpretation sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				cfg, _, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				dbPath = cfg.History.DBPath
			}
			if limit < 0 {
				return fmt.Errorf("limit must not be negative")
			}

			store, closeStore, err := openHistory(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer closeStore()

			list, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if asJSON {
				data, err := json.MarshalIndent(list, "", "  ")
				if err != nil {
					return err
				}
				return writeOutput(cmd, "", append(data, '\n'))
			}
			return printSessions(cmd.OutOrStdout(), list)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "history database (default history.db_path from config)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum sessions to show, 0 for all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printSessions(w io.Writer, list []models.InterpretationSession) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSHEET\tSTARTED\tDURATION\tELEMENTS\tSTATUS")
	for _, s := range list {
		status := "ok"
		if !s.Success {
			status = "failed: " + s.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			s.ID, s.SheetName, s.StartedAt.Format(time.RFC3339),
			s.Duration().Round(time.Millisecond), s.ElementCount, status)
	}
	return tw.Flush()
}
