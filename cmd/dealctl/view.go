package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/aristath/dealflow/internal/config"
	"github.com/aristath/dealflow/internal/domain"
	"github.com/aristath/dealflow/internal/modules/filters"
	"github.com/aristath/dealflow/internal/modules/matching"
	"github.com/aristath/dealflow/internal/modules/opportunities"
	"github.com/spf13/cobra"
)

// preview is the offline evaluation of one investor against a deal file.
type preview struct {
	InvestorID string                     `json:"investor_id"`
	Threshold  float64                    `json:"threshold"`
	Entries    []domain.ViewEntry         `json:"entries"`
	Outcomes   []*domain.EvaluationResult `json:"outcomes"`
}

func viewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view <investor> <deals.yaml> <filters.yaml>",
		Short: "Preview an investor's opportunity view offline",
		Long: `Evaluate every deal in the deal file against the investor's filter set
and print the resulting board in order, followed by the outcome of each deal.
Nothing is written.`,
		Args: cobra.ExactArgs(3),
		RunE: runView,
	}

	cmd.Flags().Float64("default-threshold", config.DefaultPassingThreshold, "Passing threshold when the filter set has none")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	return cmd
}

func runView(cmd *cobra.Command, args []string) error {
	investorID := args[0]

	deals, err := loadDeals(args[1])
	if err != nil {
		return err
	}
	sets, err := loadFilterSets(args[2])
	if err != nil {
		return err
	}

	var set *domain.InvestorFilterSet
	for _, s := range sets {
		if s.InvestorID == investorID {
			set = s
			break
		}
	}
	if set == nil {
		return fmt.Errorf("no filter set for investor %q in %s", investorID, args[2])
	}
	if err := filters.Validate(set); err != nil {
		return fmt.Errorf("filter set for %s is invalid: %w", investorID, err)
	}

	defaultThreshold, _ := cmd.Flags().GetFloat64("default-threshold")
	p := buildPreview(deals, set, defaultThreshold)

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	printPreview(cmd.OutOrStdout(), p)
	return nil
}

func buildPreview(deals []domain.Deal, set *domain.InvestorFilterSet, defaultThreshold float64) *preview {
	threshold := defaultThreshold
	if set.PassingThreshold != nil {
		threshold = *set.PassingThreshold
	}

	p := &preview{
		InvestorID: set.InvestorID,
		Threshold:  threshold,
		Entries:    []domain.ViewEntry{},
		Outcomes:   make([]*domain.EvaluationResult, 0, len(deals)),
	}
	for _, deal := range deals {
		result := matching.Evaluate(deal, set, defaultThreshold)
		p.Outcomes = append(p.Outcomes, result)
		if result.Terminal == domain.StateVisible {
			p.Entries = append(p.Entries, domain.ViewEntry{
				DealID:      deal.ID,
				Score:       result.Score,
				SubmittedAt: deal.SubmittedAt,
			})
		}
	}
	opportunities.SortEntries(p.Entries)
	return p
}

func printPreview(out io.Writer, p *preview) {
	fmt.Fprintf(out, "Opportunity view for %s (threshold %s): %d of %d deals visible\n\n",
		p.InvestorID, domain.FormatNumber(p.Threshold), len(p.Entries), len(p.Outcomes))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tDEAL\tSCORE\tSUBMITTED")
	for i, e := range p.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, e.DealID, formatScore(e.Score), e.SubmittedAt.Format("2006-01-02"))
	}
	tw.Flush()

	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DEAL\tOUTCOME\tSCORE\tDETAIL")
	for _, r := range p.Outcomes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.DealID, r.Terminal, formatScore(r.Score), outcomeDetail(r))
	}
	tw.Flush()
}

// outcomeDetail names the dimensions that stopped a deal, if any.
func outcomeDetail(r *domain.EvaluationResult) string {
	for _, st := range r.Stages {
		if st.Verdict != domain.VerdictFail && st.Verdict != domain.VerdictHidden {
			continue
		}
		if len(st.FailingDimensions) > 0 {
			dims := make([]string, len(st.FailingDimensions))
			for i, d := range st.FailingDimensions {
				dims[i] = string(d)
			}
			return string(st.Stage) + ": " + strings.Join(dims, ", ")
		}
		if len(st.Reasons) > 0 {
			return string(st.Stage) + ": " + st.Reasons[0]
		}
	}
	if r.Terminal == domain.StateRejected {
		return "deal rejected"
	}
	return ""
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *score)
}
