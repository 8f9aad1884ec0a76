package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/telhawk-systems/socdetect/internal/detection"
	"github.com/telhawk-systems/socdetect/internal/logfile"
	"github.com/telhawk-systems/socdetect/internal/models"
	"github.com/telhawk-systems/socdetect/internal/service"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		dryRun   bool
		name     string
		maxSize  int64
		progress bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Scan a log file and store alerts",
		Long: `Scans a log file (plain or gzip compressed) with the detection rules and
stores one alert per detected threat. Alerts already raised for the same
rule and file within the dedup window are skipped.`,
		Example: `  socdetect analyze /var/log/auth.log
  socdetect analyze --dry-run access.log.gz
  socdetect analyze -o json --name web-01.log /tmp/upload`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileName, content, err := logfile.ReadFile(args[0], maxSize)
			if err != nil {
				return err
			}
			if name != "" {
				fileName = name
			}

			if dryRun {
				engine, err := a.engine()
				if err != nil {
					return err
				}
				result := engine.Parse(content, fileName)
				if a.jsonOutput() {
					return a.out.JSON(result)
				}
				a.printDetections(result)
				return nil
			}

			rt, err := a.buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			var onProgress func(index, total int)
			if progress && !a.jsonOutput() {
				onProgress = func(index, total int) {
					fmt.Fprintf(cmd.ErrOrStderr(), "\rstoring alert %d/%d", index, total)
					if index == total {
						fmt.Fprintln(cmd.ErrOrStderr())
					}
				}
			}

			res, err := rt.service.Analyze(cmd.Context(), content, fileName, onProgress)
			if err != nil && res == nil {
				return err
			}
			if a.jsonOutput() {
				if jerr := a.out.JSON(res); jerr != nil {
					return jerr
				}
				return err
			}
			a.printAnalysis(res)
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only report detections, store nothing")
	cmd.Flags().StringVar(&name, "name", "", "file name recorded on alerts (default: base name without .gz)")
	cmd.Flags().Int64Var(&maxSize, "max-size", logfile.DefaultMaxSize, "maximum decompressed size in bytes")
	cmd.Flags().BoolVar(&progress, "progress", true, "show alert storage progress")
	return cmd
}

func (a *app) printDetections(result *detection.ParsedLogResult) {
	a.out.Info("%s: %d lines scanned in %dms", result.FileName, result.TotalLines, result.ProcessingTimeMs)
	if len(result.Detections) == 0 {
		a.out.Success("No threats detected")
		return
	}

	t := newTable("RULE", "SEVERITY", "SCORE", "MATCHES", "UNIQUE IPS", "TOP IP", "TIME RANGE")
	for i := range result.Detections {
		d := &result.Detections[i]
		topIP := "-"
		if len(d.Metadata.TopIPs) > 0 {
			top := d.Metadata.TopIPs[0]
			topIP = fmt.Sprintf("%s (%d)", top.IP, top.Count)
		}
		t.AddRow(
			d.Rule.ID,
			severityLabel(string(d.Severity)),
			strconv.Itoa(d.RiskScore),
			strconv.Itoa(d.Metadata.TotalOccurrences),
			strconv.Itoa(d.Metadata.UniqueIPs),
			topIP,
			timeRange(d.Metadata.TimeRange),
		)
	}
	t.Render(a.out.out)
	a.out.Warn("%d threats detected across %d matching lines", len(result.Detections), result.TotalMatches())
}

func (a *app) printAnalysis(res *service.AnalyzeResult) {
	a.printDetections(res.Parse)
	if res.Summary == nil {
		return
	}
	a.out.Println()
	a.printSummary(res.Summary)
	if res.EvidenceKey != "" {
		a.out.Info("Raw log archived to %s", res.EvidenceKey)
	}
	if res.Archive != nil {
		a.out.Info("Indexed %d matches (%d failed)", res.Archive.Indexed, res.Archive.Failed)
	}
}

func (a *app) printSummary(s *models.ProcessingSummary) {
	a.out.Success("%d alerts generated, %d duplicates skipped", s.AlertsGenerated, s.SkippedDuplicates)
	if s.Failed > 0 {
		a.out.Error("%d alerts could not be stored", s.Failed)
	}
	b := s.SeverityBreakdown
	a.out.Printf("  %s %d  %s %d  %s %d  %s %d\n",
		severityLabel("critical"), b.Critical,
		severityLabel("high"), b.High,
		severityLabel("medium"), b.Medium,
		severityLabel("low"), b.Low,
	)
	if len(s.AlertIDs) > 0 && s.Verified != len(s.AlertIDs) {
		a.out.Warn("only %d of %d stored alerts were visible on re-read", s.Verified, len(s.AlertIDs))
	}
}

func timeRange(tr detection.TimeRange) string {
	if tr.First == "" {
		return "-"
	}
	if tr.First == tr.Last {
		return tr.First
	}
	return strings.Join([]string{tr.First, tr.Last}, " to ")
}
