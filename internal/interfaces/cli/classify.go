package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/client"
	"github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/docs"
)

const maxDocumentBytes = 2 << 20

// NewClassifyCmd creates the classify command. It submits a local file for a
// dry-run classification; nothing is stored server-side.
func NewClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file>",
		Short: "Classify a document file without storing it",
		Long: `Classify reads a text file, sends it to the server for recognition, and
prints the document type, category, confidence, and urgency.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd, args[0])
		},
	}
}

// NewFieldsCmd creates the fields command. Same dry-run submission as
// classify, but prints the extracted fields instead of the classification.
func NewFieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fields <file>",
		Short: "Extract fields from a document file without storing it",
		Long: `Fields reads a text file, sends it to the server for extraction, and
prints every extracted field with its confidence tier and review status.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFields(cmd, args[0])
		},
	}
}

func runClassify(cmd *cobra.Command, path string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	result, err := classifyFile(cmd, cliCtx, path)
	if err != nil {
		return err
	}

	if cliCtx.JSON {
		return printJSON(cmd, result)
	}
	renderClassification(cmd.OutOrStdout(), &result.Classification)
	return nil
}

func runFields(cmd *cobra.Command, path string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	result, err := classifyFile(cmd, cliCtx, path)
	if err != nil {
		return err
	}

	if cliCtx.JSON {
		return printJSON(cmd, result.Fields.ToMap())
	}
	renderFields(cmd.OutOrStdout(), &result.Fields)
	return nil
}

// classifyFile reads the document and runs the server-side dry run shared by
// the classify and fields commands.
func classifyFile(cmd *cobra.Command, cliCtx *CLIContext, path string) (*client.ClassifyResult, error) {
	apiClient, err := requireClient(cliCtx)
	if err != nil {
		return nil, err
	}

	text, err := readDocumentFile(path)
	if err != nil {
		return nil, err
	}

	cliCtx.Logger.Debug("submitting document for dry-run analysis",
		logging.String("file", path),
		logging.Int("bytes", len(text)))

	result, err := apiClient.Documents().Classify(cmd.Context(), &client.ClassifyRequest{
		Filename: filepath.Base(path),
		Text:     text,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// readDocumentFile loads a document as text, rejecting empty and oversized
// files before they reach the server.
func readDocumentFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Wrapf(err, errors.CodeInvalidParam, "cannot read %s", path)
	}
	if info.IsDir() {
		return "", errors.Newf(errors.CodeInvalidParam, "%s is a directory", path)
	}
	if info.Size() > maxDocumentBytes {
		return "", errors.Newf(errors.CodeInvalidParam,
			"%s is %d bytes, limit is %d", path, info.Size(), maxDocumentBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, errors.CodeInvalidParam, "cannot read %s", path)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.Newf(errors.ErrCodeDocumentEmptyText, "%s contains no text", path)
	}
	return text, nil
}

func renderClassification(w io.Writer, cl *docs.Classification) {
	fmt.Fprintf(w, "Type:       %s\n", cl.Type)
	fmt.Fprintf(w, "Category:   %s\n", cl.Category)
	fmt.Fprintf(w, "Title:      %s\n", cl.Title)
	fmt.Fprintf(w, "Confidence: %.2f\n", cl.Confidence)
	fmt.Fprintf(w, "Urgency:    %s\n", urgencyColor(cl.Urgency).Sprint(string(cl.Urgency)))
	if len(cl.KeyTerms) > 0 {
		fmt.Fprintf(w, "Key terms:  %s\n", strings.Join(cl.KeyTerms, ", "))
	}
}

func renderFields(w io.Writer, fe *docs.FieldExtraction) {
	if len(fe.Fields) == 0 {
		fmt.Fprintln(w, "No fields extracted.")
		return
	}

	names := make([]string, 0, len(fe.Fields))
	for name := range fe.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Field", "Value", "Tier", "Review"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	for _, name := range names {
		f := fe.Fields[name]
		review := ""
		if f.NeedsReview {
			review = f.ReviewReason
			if review == "" {
				review = "yes"
			}
		}
		table.Append([]string{
			f.DisplayName,
			f.Value,
			tierColor(f.Tier).Sprint(string(f.Tier)),
			review,
		})
	}
	table.Render()

	fmt.Fprintf(w, "\n%d fields, %d needing review, overall confidence %.2f\n",
		len(fe.Fields), fe.FieldsNeedingReview, fe.OverallConfidence)
}

func urgencyColor(u docs.UrgencyLevel) *color.Color {
	switch u {
	case docs.UrgencyCritical:
		return color.New(color.FgRed, color.Bold)
	case docs.UrgencyHigh:
		return color.New(color.FgRed)
	case docs.UrgencyMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

func tierColor(t docs.ConfidenceTier) *color.Color {
	switch t {
	case docs.TierHigh:
		return color.New(color.FgGreen)
	case docs.TierMedium:
		return color.New(color.FgYellow)
	case docs.TierLow, docs.TierGuess:
		return color.New(color.FgRed)
	default:
		return color.New(color.Faint)
	}
}
