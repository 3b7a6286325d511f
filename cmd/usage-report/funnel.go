package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"usage-analytics/internal/pipeline"
)

var funnelCmd = &cobra.Command{
	Use:   "funnel",
	Short: "Print the stage funnel and the six-column flow",
	Args:  cobra.NoArgs,
	RunE:  runFunnel,
}

var funnelFlags struct {
	links bool
}

func init() {
	funnelCmd.Flags().BoolVar(&funnelFlags.links, "links", false, "Also print every non-zero flow link")
	rootCmd.AddCommand(funnelCmd)
}

func runFunnel(cmd *cobra.Command, args []string) error {
	r, err := loadReport(cmd)
	if err != nil {
		return err
	}
	stages := pipeline.StageFunnel(r.view.Companies)
	flow := pipeline.AssignFunnelStages(r.view.Companies, r.view.NodeCategories)
	flow.Assignments = nil
	if jsonOutput() {
		return printJSON(map[string]interface{}{
			"snapshotId":  r.snapshot.ID,
			"stages":      stages,
			"flow":        flow,
			"timeByStage": pipeline.TimeByStage(r.view.Companies),
		})
	}

	r.header()
	if len(stages) == 0 {
		fmt.Println("No companies in range")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Stage\tCount\t% of signups\tDrop-off\tDrop-off %")
	for _, s := range stages {
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t%d\t%.1f%%\n", s.Stage, s.Count, s.Percentage, s.DropOff, s.DropOffPercent)
	}
	tw.Flush()

	for _, col := range flow.Columns {
		fmt.Printf("\n%d. %s\n", col.Index, col.Title)
		tw = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, b := range col.Buckets {
			fmt.Fprintf(tw, "  %s\t%d\t%.1f%%\n", b.Label, b.Count, b.Percent)
		}
		tw.Flush()
	}

	if funnelFlags.links {
		fmt.Println("\nLinks")
		tw = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, l := range flow.Links {
			fmt.Fprintf(tw, "  %s\t-> %s\t%d\n", l.Source, l.Target, l.Value)
		}
		tw.Flush()
	}
	return nil
}
