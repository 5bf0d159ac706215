package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var ingestReplace bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [file.pdf...]",
	Short: "Upload PDF documents",
	Long: `Extracts, chunks, embeds and indexes each PDF.
A document is either fully indexed or not indexed at all; failures are
recorded with a reason and can be retried.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestReplace, "replace", false, "replace documents that are already uploaded")
	requiresCore(ingestCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	ctx := commandContext(cmd)
	failed := 0
	for _, path := range args {
		name := filepath.Base(path)

		data, err := os.ReadFile(path)
		if err != nil {
			failed++
			cmd.Printf("%s %s: %v\n", errorStyle.Render("✗"), name, err)
			continue
		}

		ingest := ingestionService.Ingest
		if ingestReplace {
			ingest = ingestionService.Reingest
		}

		doc, err := ingest(ctx, name, data)
		if err != nil {
			failed++
			cmd.Printf("%s %s: %v\n", errorStyle.Render("✗"), name, err)
			continue
		}
		cmd.Printf("%s %s (%d pages, %d chunks)\n",
			successStyle.Render("✓"), doc.Filename, doc.PageCount, doc.ChunkCount)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(args))
	}
	return nil
}
