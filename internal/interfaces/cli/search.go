package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/client"
	"github.com/opentenancy/caseintel/pkg/errors"
)

// NewSearchCmd creates the search command, which runs a full-text query over
// indexed documents.
func NewSearchCmd() *cobra.Command {
	var (
		category string
		docType  string
		caseID   string
		page     int
		size     int
	)

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed documents",
		Long: `Search runs a full-text query over every indexed document and prints the
matches with relevance scores and highlighted snippets.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, client.SearchParams{
				Query:    args[0],
				Category: category,
				Type:     docType,
				CaseID:   caseID,
				Page:     page,
				Size:     size,
			})
		},
	}

	searchCmd.Flags().StringVar(&category, "category", "", "filter by document category")
	searchCmd.Flags().StringVar(&docType, "type", "", "filter by document type")
	searchCmd.Flags().StringVar(&caseID, "case", "", "filter by case ID")
	searchCmd.Flags().IntVar(&page, "page", 1, "result page")
	searchCmd.Flags().IntVar(&size, "size", 20, "results per page")

	return searchCmd
}

func runSearch(cmd *cobra.Command, params client.SearchParams) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	apiClient, err := requireClient(cliCtx)
	if err != nil {
		return err
	}

	if strings.TrimSpace(params.Query) == "" {
		return errors.New(errors.ErrCodeSearchQueryInvalid, "query must not be blank")
	}

	cliCtx.Logger.Debug("searching documents",
		logging.String("query", params.Query),
		logging.Int("page", params.Page),
		logging.Int("size", params.Size))

	result, err := apiClient.Search().Query(cmd.Context(), params)
	if err != nil {
		return err
	}

	if cliCtx.JSON {
		return printJSON(cmd, result)
	}
	renderSearch(cmd.OutOrStdout(), result)
	return nil
}

func renderSearch(w io.Writer, result *client.SearchResponse) {
	if result.Total == 0 {
		fmt.Fprintln(w, "No matching documents.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Score", "Document", "Type", "Case", "Snippet"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	for _, hit := range result.Hits {
		table.Append([]string{
			fmt.Sprintf("%.2f", hit.Score),
			hit.ID,
			sourceString(hit.Source, "type"),
			sourceString(hit.Source, "case_id"),
			firstHighlight(hit.Highlights),
		})
	}
	table.Render()

	fmt.Fprintf(w, "\n%d of %d results (page %d) in %dms\n",
		len(result.Hits), result.Total, result.Pagination.Page, result.TookMs)
}

// sourceString pulls one scalar out of the indexed document source.
func sourceString(source map[string]interface{}, key string) string {
	if v, ok := source[key].(string); ok {
		return v
	}
	return ""
}

// firstHighlight flattens the highlight map to the single most useful
// snippet, with the index's emphasis tags stripped.
func firstHighlight(highlights map[string][]string) string {
	for _, field := range []string{"text", "title", "filename"} {
		if snippets, ok := highlights[field]; ok && len(snippets) > 0 {
			return stripEmphasis(snippets[0])
		}
	}
	for _, snippets := range highlights {
		if len(snippets) > 0 {
			return stripEmphasis(snippets[0])
		}
	}
	return ""
}

func stripEmphasis(s string) string {
	r := strings.NewReplacer("<em>", "", "</em>", "")
	return r.Replace(s)
}
