package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarahcodeswell/sarahs-library-sub002/cmd/sarahs-library-cli/ui"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/app"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/catalog"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/embedding"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/storage"
)

func newImportCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a catalog snapshot into the database",
		Long: `Import upserts every book of a JSON snapshot into the books table.
Books are keyed by normalized title and author, so re-importing updates
existing rows instead of duplicating them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()

			if file == "" {
				file = cfg.Catalog.SnapshotPath
			}
			books, err := catalog.LoadSnapshot(file)
			if err != nil {
				return err
			}

			db, err := app.OpenDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := importBooks(ctx, storage.NewBookRepository(db), books, !outputJSON)
			if err != nil {
				return err
			}

			logger.Info().Str("file", file).Int("books", n).Msg("Catalog imported")
			if outputJSON {
				return ui.JSON(map[string]interface{}{"file": file, "imported": n})
			}
			ui.Success("Imported %d books from %s", n, file)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "snapshot to import (default: catalog.snapshot_path)")
	return cmd
}

// bookWriter is the part of the book repository import needs.
type bookWriter interface {
	Upsert(ctx context.Context, b catalog.Book) error
}

func importBooks(ctx context.Context, repo bookWriter, books []catalog.Book, showProgress bool) (int, error) {
	var bar *ui.ProgressBar
	if showProgress {
		bar = ui.NewProgressBar(len(books), "Importing")
	}

	n := 0
	for _, b := range books {
		if err := repo.Upsert(ctx, b); err != nil {
			return n, err
		}
		n++
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
	}
	return n, nil
}

func newEmbedCmd() *cobra.Command {
	var (
		file      string
		out       string
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Precompute catalog embeddings into a snapshot",
		Long: `Embed computes an embedding for every book of a snapshot with the
configured embedding provider and writes the snapshot back with the vectors
included. The in-memory similarity matcher reads them at startup.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()

			if file == "" {
				file = cfg.Catalog.SnapshotPath
			}
			if out == "" {
				out = file
			}

			books, err := catalog.LoadSnapshot(file)
			if err != nil {
				return err
			}

			embedder, err := app.NewEmbedder(cfg.Embedding)
			if err != nil {
				return fmt.Errorf("embedding client: %w", err)
			}

			var bar *ui.ProgressBar
			if !outputJSON {
				bar = ui.NewProgressBar(len(books), "Embedding")
			}
			err = embedding.EmbedBooks(ctx, embedder, books, batchSize, func(n int) {
				if bar != nil {
					bar.Add(n)
				}
			})
			if bar != nil {
				bar.Finish()
			}
			if err != nil {
				return err
			}

			if err := catalog.WriteSnapshot(out, books); err != nil {
				return err
			}

			logger.Info().Str("model", embedder.Model()).Int("books", len(books)).Str("out", out).Msg("Catalog embedded")
			if outputJSON {
				return ui.JSON(map[string]interface{}{
					"out":       out,
					"books":     len(books),
					"model":     embedder.Model(),
					"dimension": embedder.Dimension(),
				})
			}
			ui.Success("Embedded %d books with %s into %s", len(books), embedder.Model(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "snapshot to read (default: catalog.snapshot_path)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "snapshot to write (default: overwrite --file)")
	cmd.Flags().IntVar(&batchSize, "batch", embedding.DefaultBatchSize, "books per embedding request")
	return cmd
}
