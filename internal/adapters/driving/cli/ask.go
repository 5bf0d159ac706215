package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the uploaded documents",
	Long: `Answers a question using only the uploaded PDFs.
The answer lists the file and page of every excerpt it was given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	requiresCore(askCmd)
	rootCmd.AddCommand(askCmd)
}

// askOutput is the JSON form of an answer.
type askOutput struct {
	Answer       string            `json:"answer"`
	Sources      []domain.Citation `json:"sources"`
	Insufficient bool              `json:"insufficient,omitempty"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	question := strings.Join(args, " ")
	result, err := queryService.Ask(commandContext(cmd), question)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		return outputAskJSON(cmd, result)
	}
	outputAnswer(cmd, result)
	return nil
}

func outputAskJSON(cmd *cobra.Command, result *domain.QueryResult) error {
	out := askOutput{
		Answer:       result.Answer,
		Sources:      result.Sources,
		Insufficient: result.Insufficient,
	}
	if out.Sources == nil {
		out.Sources = []domain.Citation{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputAnswer(cmd *cobra.Command, result *domain.QueryResult) {
	cmd.Println(answerStyle.Render(result.Answer))

	if len(result.Sources) == 0 {
		cmd.Println(mutedStyle.Render("No sources."))
		return
	}

	cmd.Println()
	cmd.Println(titleStyle.Render("Sources"))
	for i, src := range result.Sources {
		cmd.Printf("  [%d] %s, page %d\n", i+1, src.Filename, src.Page)
	}
}
