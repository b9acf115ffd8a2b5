package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docchunk/internal/chunker"
	"github.com/dgallion1/docchunk/internal/source"
)

func newUnitsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "units FILE",
		Short: "Print the units of text extracted from one file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			docs, errs := source.Load(cmd.Context(), args[:1], cfg.ParserOptions(), log)
			if len(errs) > 0 {
				return errs[0]
			}
			if len(docs) == 0 {
				return fmt.Errorf("nothing loaded from %s", args[0])
			}

			// Unit extraction never calls the embedder.
			ch, err := chunker.New(cfg.ChunkerConfig(), nil, log)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(ch.Units(docs[0].Text))
		},
	}
	return cmd
}
