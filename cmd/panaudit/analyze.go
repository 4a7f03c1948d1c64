package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"panaudit/internal/analysis"
	"panaudit/internal/model"
	"panaudit/internal/parser"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		filePath     string
		format       string
		provider     string
		dbDSN        string
		outFile      string
		skipFindings bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a firewall configuration export",
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, objects, meta, err := loadSnapshot(provider, filePath, format, dbDSN)
			if err != nil {
				slog.Error("Failed to load configuration", "error", err)
				return err
			}
			slog.Info("Configuration loaded", "rules", meta.RuleCount,
				"address_objects", meta.AddressObjectCount, "service_objects", meta.ServiceObjectCount)

			analysis.AnalyzeObjectUsage(rules, objects)
			var findings analysis.Result
			if !skipFindings {
				findings = analysis.AnalyzeRules(rules)
			}
			report := analysis.BuildReport(rules, objects, findings)

			encoded, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode report: %w", err)
			}

			if outFile != "" {
				if err := os.WriteFile(outFile, encoded, 0644); err != nil {
					return fmt.Errorf("failed to write report to %s: %w", outFile, err)
				}
				printSummary(report)
			} else {
				fmt.Println(string(encoded))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filePath, "file", "", "Configuration export file (for 'file' provider)")
	cmd.Flags().StringVar(&format, "format", "auto", "Config format: 'auto', 'xml' or 'set'")
	cmd.Flags().StringVar(&provider, "provider", "file", "Snapshot provider: 'file' or 'mariadb'")
	cmd.Flags().StringVar(&dbDSN, "db", "", "Database connection string (for 'mariadb' provider)")
	cmd.Flags().StringVar(&outFile, "out", "", "Write the JSON report to this file instead of stdout")
	cmd.Flags().BoolVar(&skipFindings, "objects-only", false, "Run only the object usage analysis")
	return cmd
}

func loadSnapshot(provider, filePath, format, dsn string) ([]model.Rule, []model.Object, model.Metadata, error) {
	switch provider {
	case "file":
		if filePath == "" {
			return nil, nil, model.Metadata{}, fmt.Errorf("configuration file path must be provided for file provider")
		}
		content, err := os.ReadFile(filePath)
		if err != nil {
			return nil, nil, model.Metadata{}, err
		}
		if format == "auto" {
			format = parser.DetectFormat(content)
		}
		switch format {
		case parser.FormatXML:
			return parser.ParseXML(content)
		case parser.FormatSet:
			return parser.ParseSet(string(content))
		default:
			return nil, nil, model.Metadata{}, fmt.Errorf("unknown config format: %s", format)
		}
	case "mariadb":
		if dsn == "" {
			return nil, nil, model.Metadata{}, fmt.Errorf("database connection string must be provided for mariadb provider")
		}
		p, err := parser.NewMariaDBProvider(dsn)
		if err != nil {
			return nil, nil, model.Metadata{}, err
		}
		defer p.Close()
		if err := p.Load(); err != nil {
			return nil, nil, model.Metadata{}, err
		}
		return p.Rules, p.Objects, p.Metadata, nil
	default:
		return nil, nil, model.Metadata{}, fmt.Errorf("unknown snapshot provider: %s", provider)
	}
}

func printSummary(report analysis.Report) {
	bold := color.New(color.Bold)
	bold.Println("Analysis summary")
	fmt.Printf("  rules: %d (%d disabled)  objects: %d\n",
		report.Summary.TotalRules, report.Summary.DisabledRulesCount, report.Summary.TotalObjects)
	fmt.Printf("  objects: %s used, %s unused, %s redundant\n",
		color.GreenString("%d", report.Summary.UsedObjectsCount),
		color.RedString("%d", report.Summary.UnusedObjectsCount),
		color.YellowString("%d", report.Summary.RedundantObjectsCount))
	fmt.Printf("  findings: %s unused, %s duplicate, %s shadowed, %s overlapping\n",
		severityColor(len(report.UnusedRules), color.FgRed),
		severityColor(len(report.DuplicateRules), color.FgYellow),
		severityColor(len(report.ShadowedRules), color.FgRed),
		severityColor(len(report.OverlappingRules), color.FgYellow))
}

func severityColor(n int, attr color.Attribute) string {
	if n == 0 {
		return color.GreenString("0")
	}
	return color.New(attr).Sprintf("%d", n)
}
