package main

import (
	"errors"
	"fmt"

	"github.com/aristath/dealflow/internal/modules/filters"
	"github.com/spf13/cobra"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <filters.yaml>",
		Short: "Validate investor filter sets offline",
		Long: `Parse a filter-set file and check every rule the same way the
filter store does on PUT /api/investors/{id}/filters. All problems are listed.`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	sets, err := loadFilterSets(args[0])
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		return fmt.Errorf("%s: no filter_sets found", args[0])
	}

	out := cmd.OutOrStdout()
	seen := make(map[string]bool, len(sets))
	invalid := 0

	for i, set := range sets {
		name := set.InvestorID
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
		}

		var problems []string
		if set.InvestorID != "" && seen[set.InvestorID] {
			problems = append(problems, "duplicate investor id")
		}
		seen[set.InvestorID] = true

		if err := filters.Validate(set); err != nil {
			var many filters.ValidationErrors
			if errors.As(err, &many) {
				for _, e := range many {
					problems = append(problems, e.Error())
				}
			} else {
				problems = append(problems, err.Error())
			}
		}

		if len(problems) == 0 {
			fmt.Fprintf(out, "ok      %s (%d assessment, %d risk)\n", name, len(set.AssessmentRules), len(set.RiskRules))
			continue
		}
		invalid++
		fmt.Fprintf(out, "invalid %s\n", name)
		for _, p := range problems {
			fmt.Fprintf(out, "  - %s\n", p)
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d filter sets invalid", invalid, len(sets))
	}
	return nil
}
