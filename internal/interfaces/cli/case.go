package cli

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// NewCaseCmd creates the case command, which prints the aggregated snapshot
// for one case.
func NewCaseCmd() *cobra.Command {
	var rebuild bool

	caseCmd := &cobra.Command{
		Use:   "case <id>",
		Short: "Show the aggregated snapshot for a case",
		Long: `Case fetches the case-level record folded from every processed document:
parties, deadlines, amounts claimed, and the urgency of the case as a whole.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCase(cmd, args[0], rebuild)
		},
	}

	caseCmd.Flags().BoolVar(&rebuild, "rebuild", false, "rebuild the snapshot from stored documents before printing")

	return caseCmd
}

func runCase(cmd *cobra.Command, caseID string, rebuild bool) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	apiClient, err := requireClient(cliCtx)
	if err != nil {
		return err
	}

	cliCtx.Logger.Debug("fetching case snapshot",
		logging.String("case_id", caseID),
		logging.Bool("rebuild", rebuild))

	var data *docs.CaseData
	if rebuild {
		data, err = apiClient.Cases().Rebuild(cmd.Context(), caseID)
	} else {
		data, err = apiClient.Cases().Get(cmd.Context(), caseID)
	}
	if err != nil {
		return err
	}

	if cliCtx.JSON {
		return printJSON(cmd, data)
	}
	renderCase(cmd.OutOrStdout(), data)
	return nil
}

func renderCase(w io.Writer, data *docs.CaseData) {
	fmt.Fprintf(w, "Case:       %s\n", data.CaseID)
	if data.CaseNumber != "" {
		fmt.Fprintf(w, "Number:     %s\n", data.CaseNumber)
	}
	if data.CourtName != "" {
		fmt.Fprintf(w, "Court:      %s\n", data.CourtName)
	}
	if data.TenantName != "" {
		fmt.Fprintf(w, "Tenant:     %s\n", data.TenantName)
	}
	if data.LandlordName != "" {
		fmt.Fprintf(w, "Landlord:   %s\n", data.LandlordName)
	}
	if data.PropertyAddress != "" {
		fmt.Fprintf(w, "Property:   %s\n", data.PropertyAddress)
	}
	if data.HearingDate != "" {
		fmt.Fprintf(w, "Hearing:    %s\n", data.HearingDate)
	}
	if data.AnswerDeadline != "" {
		fmt.Fprintf(w, "Answer by:  %s\n", data.AnswerDeadline)
	}
	fmt.Fprintf(w, "Urgency:    %s\n", urgencyColor(data.Urgency).Sprint(string(data.Urgency)))
	fmt.Fprintf(w, "Documents:  %d\n", data.DocumentCount)

	renderCaseAmounts(w, data)

	if len(data.AllParties) > 0 {
		fmt.Fprintln(w, "\nParties seen:")
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Name", "Role"})
		table.SetBorder(false)
		for _, p := range data.AllParties {
			table.Append([]string{p.Name, p.Role})
		}
		table.Render()
	}

	if len(data.AllDates) > 0 {
		fmt.Fprintln(w, "\nDates seen:")
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Date", "Label"})
		table.SetBorder(false)
		for _, d := range data.AllDates {
			table.Append([]string{d.Date, d.Label})
		}
		table.Render()
	}
}

func renderCaseAmounts(w io.Writer, data *docs.CaseData) {
	type amount struct {
		label string
		value float64
	}
	amounts := []amount{
		{"Monthly rent", data.MonthlyRent},
		{"Rent claimed", data.RentClaimed},
		{"Security deposit", data.SecurityDeposit},
		{"Late fees", data.LateFees},
		{"Damages", data.Damages},
		{"Total claimed", data.TotalClaimed},
	}

	printed := false
	for _, a := range amounts {
		if a.value == 0 {
			continue
		}
		if !printed {
			fmt.Fprintln(w, "\nAmounts:")
			printed = true
		}
		fmt.Fprintf(w, "  %-17s $%.2f\n", a.label, a.value)
	}
}
