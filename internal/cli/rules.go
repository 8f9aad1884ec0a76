package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newRulesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the active detection rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			rules := engine.Rules().Rules()
			if a.jsonOutput() {
				return a.out.JSON(rules)
			}

			t := newTable("ID", "NAME", "SEVERITY", "BASE SCORE", "CATEGORY", "MITRE")
			for _, r := range rules {
				t.AddRow(
					r.ID,
					r.Name,
					severityLabel(r.Severity),
					strconv.Itoa(r.BaseRiskScore),
					r.Category,
					strings.Join(r.MITREAttack, ","),
				)
			}
			t.Render(a.out.out)
			a.out.Info("%d rules", len(rules))
			return nil
		},
	}
}
