package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/telhawk-systems/socdetect/internal/severity"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show alert counts per analyzed file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			stats, err := rt.service.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.out.JSON(stats)
			}

			if stats.TotalAlerts == 0 {
				a.out.Info("No log analysis alerts stored")
				return nil
			}

			t := newTable("FILE", "TOTAL", "BY SEVERITY")
			for _, f := range stats.Files {
				t.AddRow(f.FileName, strconv.Itoa(f.Total), severityCounts(f.BySeverity))
			}
			t.Render(a.out.out)
			a.out.Println()
			a.out.Info("%d alerts: %s", stats.TotalAlerts, severityCounts(stats.BySeverity))
			return nil
		},
	}
}

// severityCounts renders counts most severe first, omitting zeros.
func severityCounts(counts map[string]int) string {
	parts := make([]string, 0, len(counts))
	seen := make(map[string]bool, len(severity.Levels))
	for _, l := range severity.Levels {
		level := string(l)
		seen[level] = true
		if n := counts[level]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", level, n))
		}
	}
	var other []string
	for level, n := range counts {
		if !seen[level] && n > 0 {
			other = append(other, fmt.Sprintf("%s=%d", level, n))
		}
	}
	sort.Strings(other)
	return strings.Join(append(parts, other...), " ")
}
