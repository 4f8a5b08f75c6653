package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/guard-registry/internal/app"
	"github.com/joseph-ayodele/guard-registry/internal/backup"
	"github.com/joseph-ayodele/guard-registry/internal/batch"
	"github.com/joseph-ayodele/guard-registry/internal/common"
	"github.com/joseph-ayodele/guard-registry/internal/conversation"
	"github.com/joseph-ayodele/guard-registry/internal/export"
	"github.com/joseph-ayodele/guard-registry/internal/repository"
)

// env is what every subcommand needs; built once in the root PersistentPreRunE.
type env struct {
	cfg    *common.Config
	logger *slog.Logger
	store  repository.RecordStore
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "records",
		Short:         "Administer the guard record store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := common.LoadConfig()
			if err != nil {
				return err
			}
			cfg.Log.File = ""
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, _, err := common.NewLogger(cfg.Log)
			if err != nil {
				return err
			}
			store, err := repository.Open(cmd.Context(), cfg.Store, logger)
			if err != nil {
				return err
			}
			e.cfg, e.logger, e.store = cfg, logger, store
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if e.store != nil {
				return e.store.Close()
			}
			return nil
		},
	}
	root.AddCommand(
		newListCmd(e),
		newClearCmd(e),
		newExportCmd(e),
		newBackupCmd(e),
		newBatchCmd(e),
	)
	return root
}

func newListCmd(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the confirmed records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			recs, err := e.store.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				if recs == nil {
					recs = []repository.StoredRecord{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(recs)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), conversation.FormatList(recs))
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

func newClearCmd(e *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every record from the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			if err := e.store.Clear(cmd.Context()); err != nil {
				return err
			}
			e.logger.Warn("records.cleared", "driver", e.cfg.Store.Driver)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm removal")
	return cmd
}

func newExportCmd(e *env) *cobra.Command {
	var out, fromStr, toStr string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the records to an XLSX workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, err := parseDateFlag("from", fromStr)
			if err != nil {
				return err
			}
			to, err := parseDateFlag("to", toStr)
			if err != nil {
				return err
			}
			b, err := export.NewService(e.store, e.logger).ExportRecordsXLSX(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, b, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			e.logger.Info("export.written", "path", out, "bytes", len(b))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "guardias.xlsx", "output XLSX path")
	cmd.Flags().StringVar(&fromStr, "from", "", "from date YYYY-MM-DD")
	cmd.Flags().StringVar(&toStr, "to", "", "to date YYYY-MM-DD")
	return cmd
}

func newBackupCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the records to the backup directory or S3 bucket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dest, err := backup.NewDestination(cmd.Context(), e.cfg.Backup)
			if err != nil {
				return err
			}
			loc, err := backup.NewService(e.store, dest, e.logger).Run(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), loc)
			return err
		},
	}
}

func newBatchCmd(e *env) *cobra.Command {
	var (
		dir         string
		concurrency int
		save        bool
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "OCR every scan in a directory and print the parsed records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			processor, err := app.NewProcessor(e.cfg, e.logger, nil)
			if err != nil {
				return err
			}
			results, _, err := batch.NewRunner(processor, concurrency, e.logger).ProcessDirectory(cmd.Context(), dir)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			now := time.Now()
			for _, r := range results {
				if r.Err != "" || r.Deduplicated {
					continue
				}
				if err := enc.Encode(map[string]any{"path": filepath.ToSlash(r.Path), "record": r.Record}); err != nil {
					return err
				}
				if save && !r.Record.Empty() {
					sender := "batch:" + filepath.Base(r.Path)
					if err := e.store.Append(cmd.Context(), repository.NewStoredRecord(r.Record, sender, now)); err != nil {
						return err
					}
				}
			}
			return batch.Errors(results)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory of scans (required)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 2, "files processed in parallel")
	cmd.Flags().BoolVar(&save, "save", false, "append non-empty records to the store")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func parseDateFlag(name, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s date, use YYYY-MM-DD: %w", name, err)
	}
	return &t, nil
}
