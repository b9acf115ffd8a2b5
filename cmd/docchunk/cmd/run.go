package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docchunk/internal/app"
	"github.com/dgallion1/docchunk/internal/pipeline"
	"github.com/dgallion1/docchunk/internal/source"
	"github.com/dgallion1/docchunk/internal/store"
)

func newRunCmd() *cobra.Command {
	var (
		input      string
		recursive  bool
		backend    string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Chunk, enrich and store every document under the input path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if input != "" {
				cfg.InputDir = input
			}
			if backend != "" {
				cfg.StoreBackend = backend
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log := newLogger(cfg)
			ctx := cmd.Context()

			paths, err := source.Discover(ctx, cfg.InputDir, recursive)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no supported documents in %s", cfg.InputDir)
			}
			log.Info("discovered documents", "input", cfg.InputDir, "count", len(paths))

			docs, loadErrs := source.Load(ctx, paths, cfg.ParserOptions(), log)
			if len(docs) == 0 {
				return fmt.Errorf("no readable documents in %s: %w", cfg.InputDir, errors.Join(loadErrs...))
			}

			engine, err := app.Build(cfg, cfg.StoreOptions(), log)
			if err != nil {
				return err
			}
			defer func() {
				if err := engine.Close(); err != nil {
					log.Warn("close store", "error", err)
				}
			}()

			if j, ok := engine.Sink.(*store.JSONDir); ok {
				n, err := j.Reset()
				if err != nil {
					return fmt.Errorf("clear previous chunks: %w", err)
				}
				log.Info("cleared previous run", "files", n)
			}

			sum, err := engine.Coordinator.Run(ctx, docs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sum)
			}
			printSummary(out, sum, len(loadErrs))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "File or directory to process (default INPUT_DIR)")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Descend into subdirectories")
	cmd.Flags().StringVar(&backend, "store", "", "Store backend: json, sqlite or pathstore")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run summary as JSON")

	return cmd
}

func printSummary(w io.Writer, sum pipeline.Summary, unreadable int) {
	fmt.Fprintf(w, "Documents: %d (%d failed, %d unreadable)\n", sum.Documents, sum.DocumentsFailed, unreadable)
	fmt.Fprintf(w, "Chunks:    %d\n", sum.Chunks)
	fmt.Fprintf(w, "Enriched:  %d\n", sum.Enriched)
	fmt.Fprintf(w, "Failed:    %d\n", sum.Failed)
	fmt.Fprintf(w, "Stored:    %d\n", sum.Stored)
	if len(sum.Failures) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Failures:")
	for _, f := range sum.Failures {
		fmt.Fprintf(w, "  [%s] %s #%d: %s\n", f.Stage, f.Source, f.Index, f.Error)
	}
}
