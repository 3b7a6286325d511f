package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"usage-analytics/internal/config"
	"usage-analytics/internal/model"
	"usage-analytics/internal/pipeline"
)

var rootCmd = &cobra.Command{
	Use:   "usage-report",
	Short: "Product usage analytics from exported CSV tables",
	Long: `Load the exported usage tables once and print dashboard metrics.

Commands:
  summary     - Headline metrics and weekly signups
  funnel      - Stage funnel and six-column flow
  retention   - Retention curves and weekly cohorts
  export      - Write the filtered company table to CSV or JSON`,
	SilenceUsage: true,
}

var rootFlags struct {
	configPath string
	dataDir    string
	from       string
	to         string
	plan       string
	format     string
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.configPath, "config", "c", "", "Path to YAML config")
	rootCmd.PersistentFlags().StringVarP(&rootFlags.dataDir, "data-dir", "d", "", "Directory with the exported CSV tables (overrides config)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.from, "from", "", "Start date YYYY-MM-DD (default: start of data)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.to, "to", "", "End date YYYY-MM-DD (default: end of data)")
	rootCmd.PersistentFlags().StringVarP(&rootFlags.plan, "plan", "p", model.AllPlans, "Plan filter")
	rootCmd.PersistentFlags().StringVarP(&rootFlags.format, "format", "f", "", "Output format: csv or json")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// report is one loaded snapshot narrowed to the command-line filter.
type report struct {
	cfg      config.Config
	snapshot *pipeline.Snapshot
	filter   model.ViewFilter
	view     *model.FeatureTable
	now      time.Time
}

func loadReport(cmd *cobra.Command) (*report, error) {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return nil, err
	}
	if rootFlags.dataDir != "" {
		cfg.DataDir = rootFlags.dataDir
	}

	snap, err := pipeline.Run(cmd.Context(), pipeline.Options{
		DataDir:      cfg.DataDir,
		DenyListFile: cfg.DenyListFile,
		Rules: pipeline.ExclusionRules{
			EmailMarkers: cfg.Exclusion.EmailDomains,
			SlugMarkers:  cfg.Exclusion.SlugSubstrings,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.DataDir, err)
	}

	now := time.Now().UTC()
	from, to := pipeline.DefaultRange(snap.Features, cfg.DefaultStartDate, now)
	if rootFlags.from != "" {
		if from, err = time.Parse("2006-01-02", rootFlags.from); err != nil {
			return nil, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if rootFlags.to != "" {
		if to, err = time.Parse("2006-01-02", rootFlags.to); err != nil {
			return nil, fmt.Errorf("invalid --to: %w", err)
		}
	}
	if to.Before(from) {
		return nil, fmt.Errorf("--from %s is after --to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	filter := model.ViewFilter{From: &from, To: &to, Plan: rootFlags.plan}
	return &report{
		cfg:      cfg,
		snapshot: snap,
		filter:   filter,
		view:     pipeline.Select(snap.Features, filter),
		now:      now,
	}, nil
}

func (r *report) header() {
	fmt.Printf("📊 %d companies (%s to %s, %s)\n",
		r.view.Len(), r.filter.From.Format("2006-01-02"), r.filter.To.Format("2006-01-02"), planLabel(r.filter.Plan))
	if missing := r.snapshot.Report.Missing(); len(missing) > 0 {
		fmt.Printf("⚠️  Missing tables: %s\n", strings.Join(missing, ", "))
	}
	fmt.Println()
}

func planLabel(plan string) string {
	if plan == "" {
		return model.AllPlans
	}
	return plan
}

func jsonOutput() bool {
	return strings.EqualFold(rootFlags.format, "json")
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
