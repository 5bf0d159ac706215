package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var documentsJSON bool

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "List uploaded documents",
	Long:    `Lists every uploaded PDF with its ingestion status.`,
	Args:    cobra.NoArgs,
	RunE:    runDocuments,
}

var removeCmd = &cobra.Command{
	Use:   "remove [filename]",
	Short: "Remove a document",
	Long:  `Removes a document and all of its indexed chunks.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	documentsCmd.Flags().BoolVar(&documentsJSON, "json", false, "output documents as JSON")
	requiresCore(documentsCmd)
	requiresCore(removeCmd)
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(removeCmd)
}

// documentOutput is the JSON form of a document.
type documentOutput struct {
	Filename   string    `json:"filename"`
	Status     string    `json:"status"`
	Pages      int       `json:"pages"`
	Chunks     int       `json:"chunks"`
	IngestedAt time.Time `json:"ingested_at"`
	Reason     string    `json:"reason,omitempty"`
}

func runDocuments(cmd *cobra.Command, _ []string) error {
	if corpusService == nil {
		return errors.New("corpus service not configured")
	}

	docs, err := corpusService.List(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if documentsJSON {
		return outputDocumentsJSON(cmd, docs)
	}
	outputDocumentsTable(cmd, docs)
	return nil
}

func outputDocumentsJSON(cmd *cobra.Command, docs []domain.Document) error {
	out := make([]documentOutput, len(docs))
	for i := range docs {
		out[i] = documentOutput{
			Filename:   docs[i].Filename,
			Status:     docs[i].Status.String(),
			Pages:      docs[i].PageCount,
			Chunks:     docs[i].ChunkCount,
			IngestedAt: docs[i].IngestedAt,
			Reason:     docs[i].Reason,
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal documents: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputDocumentsTable(cmd *cobra.Command, docs []domain.Document) {
	if len(docs) == 0 {
		cmd.Println("No documents uploaded.")
		return
	}

	cmd.Println(titleStyle.Render("Documents"))
	cmd.Println()
	for i := range docs {
		doc := &docs[i]
		status := statusStyle(doc.Status).Render(fmt.Sprintf("%-9s", doc.Status))
		cmd.Printf("  %s  %s\n", status, doc.Filename)
		if doc.Status == domain.DocumentProcessed {
			cmd.Printf("             %s\n", mutedStyle.Render(fmt.Sprintf("%d pages, %d chunks, %s",
				doc.PageCount, doc.ChunkCount, doc.IngestedAt.Local().Format(time.DateTime))))
		}
		if doc.Reason != "" {
			cmd.Printf("             %s\n", mutedStyle.Render(doc.Reason))
		}
	}
}

func runRemove(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	filename := args[0]
	if err := ingestionService.Remove(commandContext(cmd), filename); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("document %q not found", filename)
		}
		return fmt.Errorf("failed to remove document: %w", err)
	}

	cmd.Printf("Removed %s\n", filename)
	return nil
}
