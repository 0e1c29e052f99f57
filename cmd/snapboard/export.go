// ABOUTME: "snapboard export": writes the journaled board as a PDF contact sheet or a Parquet table.
// ABOUTME: Reads the journal and blob store directly, so it works while no server is running.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/2389-research/snapboard/blob"
	"github.com/2389-research/snapboard/board/catalog"
	"github.com/2389-research/snapboard/board/core"
	"github.com/2389-research/snapboard/board/journal"
	"github.com/2389-research/snapboard/export"
)

// blobImages adapts a blob store to export.Images.
type blobImages struct{ store blob.Store }

func (b blobImages) Image(ctx context.Context, ref core.ContentRef) (blob.Image, error) {
	return b.store.Get(ctx, ref)
}

func newExportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:       "export pdf|parquet",
		Short:     "Export the board as a PDF contact sheet or a Parquet table",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"pdf", "parquet"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			store, _, err := journal.Restore(cfg.Journal, a.logger)
			if err != nil {
				return err
			}
			cards := store.List()

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			switch args[0] {
			case "pdf":
				cat, err := catalog.LoadOrDefault(cfg.Catalog)
				if err != nil {
					return err
				}
				images := blobImages{store: blob.OpenDisk(cfg.BlobDir, blobCacheBytes)}
				return export.PDF(cmd.Context(), w, "snapboard", cards, images, cat)
			case "parquet":
				return export.Parquet(w, cards)
			default:
				return fmt.Errorf("unknown export format %q (want pdf or parquet)", args[0])
			}
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}
