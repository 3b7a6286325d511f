package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"usage-analytics/internal/model"
	"usage-analytics/internal/pipeline"
)

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Print retention curves and weekly cohorts",
	Args:  cobra.NoArgs,
	RunE:  runRetention,
}

func init() {
	rootCmd.AddCommand(retentionCmd)
}

func runRetention(cmd *cobra.Command, args []string) error {
	r, err := loadReport(cmd)
	if err != nil {
		return err
	}
	curves := pipeline.ProductCurves(r.view, r.now)
	cohorts := pipeline.FeatureCohorts(r.view, r.now)
	if jsonOutput() {
		return printJSON(map[string]interface{}{
			"snapshotId": r.snapshot.ID,
			"retention":  curves,
			"cohorts":    cohorts,
		})
	}

	r.header()
	if curves.Overall == nil {
		fmt.Println("Not enough data to compute retention")
		return nil
	}
	printCurve("Overall", curves.Overall)
	printCurve("Brain Studio", curves.BrainStudio)
	printCurve("Connect", curves.Connect)

	if len(cohorts) > 0 {
		fmt.Println("\nCohorts")
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprint(tw, "Week")
		for _, p := range model.RetentionLadder {
			fmt.Fprintf(tw, "\t%s", p.Label)
		}
		fmt.Fprintln(tw)
		for _, c := range cohorts {
			fmt.Fprint(tw, c.Label)
			for _, p := range c.Periods {
				if p.Rate == nil {
					fmt.Fprint(tw, "\t-")
				} else {
					fmt.Fprintf(tw, "\t%.1f%%", *p.Rate)
				}
			}
			fmt.Fprintln(tw)
		}
		tw.Flush()
	}
	return nil
}

func printCurve(title string, curve []model.RetentionRecord) {
	fmt.Printf("\n%s\n", title)
	if curve == nil {
		fmt.Println("  not enough data")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, p := range curve {
		fmt.Fprintf(tw, "  %s\t%d/%d\t%.1f%%\n", p.Period, p.Retained, p.Eligible, p.Rate)
	}
	tw.Flush()
}
