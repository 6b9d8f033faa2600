package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/client"
)

// NewIngestCmd creates the ingest command, which stores a document under a
// case and runs the full pipeline on it.
func NewIngestCmd() *cobra.Command {
	var caseID string

	ingestCmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a document into a case",
		Long: `Ingest uploads a text file to the server, which classifies it, extracts
its fields, stores the results under the given case, and rebuilds the case
snapshot.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args[0], caseID)
		},
	}

	ingestCmd.Flags().StringVar(&caseID, "case", "", "case ID the document belongs to (required)")
	_ = ingestCmd.MarkFlagRequired("case")

	return ingestCmd
}

func runIngest(cmd *cobra.Command, path, caseID string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	apiClient, err := requireClient(cliCtx)
	if err != nil {
		return err
	}

	text, err := readDocumentFile(path)
	if err != nil {
		return err
	}

	cliCtx.Logger.Info("ingesting document",
		logging.String("file", path),
		logging.String("case_id", caseID))

	result, err := apiClient.Documents().Ingest(cmd.Context(), &client.IngestRequest{
		CaseID:   caseID,
		Filename: filepath.Base(path),
		Text:     text,
	})
	if err != nil {
		return err
	}

	if cliCtx.JSON {
		return printJSON(cmd, result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Document:   %s\n", result.DocumentID)
	fmt.Fprintf(w, "Case:       %s\n", result.CaseID)
	fmt.Fprintf(w, "Type:       %s (%.2f)\n", result.Classification.Type, result.Classification.Confidence)
	fmt.Fprintf(w, "Urgency:    %s\n", urgencyColor(result.Classification.Urgency).Sprint(string(result.Classification.Urgency)))
	fmt.Fprintf(w, "Fields:     %d extracted, %d needing review\n", result.FieldsExtracted, result.FieldsNeedingReview)
	return nil
}
