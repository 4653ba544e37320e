package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"epubsort/internal/checkpoint"
	"epubsort/internal/config"
	"epubsort/internal/dedup"
	"epubsort/internal/logging"
	"epubsort/internal/resultcache"
)

var errNotCorrupted = errors.New("file is not marked corrupted")

func newStateCommand(ctx *commandContext) *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect resume state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ledger := openLedger(cfg)
			registry := dedup.Open(filepath.Join(cfg.Paths.CacheDir, dedup.FileName), logging.NewNop())
			web, ai := resultcache.OpenDir(cfg.Paths.CacheDir, time.Duration(cfg.Cache.TTLDays)*24*time.Hour, logging.NewNop())

			corrupted := ledger.Corrupted()
			rows := [][]string{
				{"Processed", strconv.Itoa(ledger.ProcessedCount())},
				{"Corrupted", strconv.Itoa(len(corrupted))},
				{"Known content hashes", strconv.Itoa(registry.Count())},
				{"Web cache entries", strconv.Itoa(web.Len())},
				{"AI cache entries", strconv.Itoa(ai.Len())},
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderTable([]string{"State", "Count"}, rows, []columnAlignment{alignLeft, alignRight}, colorize))
			if len(corrupted) > 0 {
				names := make([][]string, 0, len(corrupted))
				for _, name := range corrupted {
					names = append(names, []string{name})
				}
				fmt.Fprintln(out, renderTable([]string{"Corrupted file"}, names, nil, colorize))
				fmt.Fprintln(out, "Replace a file, then run `epubsort state clear-corrupted <file>` to retry it.")
			}
			return nil
		},
	}

	stateCmd.AddCommand(newClearCorruptedCommand(ctx))
	return stateCmd
}

func newClearCorruptedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-corrupted <file>",
		Short: "Remove the permanent corrupted mark from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			name := filepath.Base(args[0])
			ledger := openLedger(cfg)
			if !ledger.IsCorrupted(name) {
				return fmt.Errorf("%s: %w", name, errNotCorrupted)
			}
			ledger.Remove(name)
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared corrupted mark for %s; it will be processed on the next run\n", name)
			return nil
		},
	}
}

func openLedger(cfg *config.Config) *checkpoint.Ledger {
	return checkpoint.Open(filepath.Join(cfg.Paths.CacheDir, checkpoint.FileName), logging.NewNop())
}
