package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newScoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "score <alert-id>",
		Short: "Re-score an alert against recent activity",
		Long: `Correlates a stored alert with alerts seen in the lookback window and
records the adjusted risk score on the alert.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.service.Score(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if result == nil {
				return fmt.Errorf("alert %s not found", args[0])
			}

			if a.jsonOutput() {
				return a.out.JSON(result)
			}

			a.out.Info("Alert %s", result.AlertID)
			a.out.Printf("  score: %d -> %d\n", result.OriginalScore, result.AdjustedScore)
			if len(result.Adjustments) > 0 {
				t := newTable("PATTERN", "ADJUSTMENT", "REASON")
				for _, adj := range result.Adjustments {
					t.AddRow(adj.Pattern, fmt.Sprintf("%+d", adj.Adjustment), truncate(adj.Reason, 80))
				}
				t.Render(a.out.out)
			} else {
				a.out.Printf("  no correlated activity\n")
			}
			if result.ShouldEscalate {
				a.out.Warn("Escalate to %s", severityLabel(result.NewSeverity))
			}
			return nil
		},
	}
}
