package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"usage-analytics/internal/pipeline"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print headline metrics and weekly signups",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	r, err := loadReport(cmd)
	if err != nil {
		return err
	}
	m := pipeline.Overview(r.view.Companies, pipeline.RangeDays(r.filter))
	weekly := pipeline.WeeklySignupSeries(r.view.Companies)
	if jsonOutput() {
		return printJSON(map[string]interface{}{
			"snapshotId": r.snapshot.ID,
			"metrics":    m,
			"weekly":     weekly,
		})
	}

	r.header()
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Signups\t%d\t%.1f/day\n", m.TotalSignups, m.AvgSignupsPerDay)
	fmt.Fprintf(tw, "Created bot\t%d\t%.1f%%\n", m.HasBot, m.BotRate)
	fmt.Fprintf(tw, "Production channel\t%d\t%.1f%%\n", m.HasProdChannel, m.ProdRate)
	fmt.Fprintf(tw, "Exceeded free tier\t%d\t%.1f%%\n", m.ExceededFreeTier, m.ExceededRate)
	fmt.Fprintf(tw, "Paid\t%d\t%.1f%%\n", m.ActuallyPaid, m.PaidRate)
	fmt.Fprintf(tw, "Subscription\t%d\t%.1f%%\n", m.WithSubscription, m.SubscriptionRate)
	fmt.Fprintf(tw, "Brain Studio\t%d\t%.1f%%\n", m.HasBrainStudio, m.BrainRate)
	fmt.Fprintf(tw, "Connect\t%d\t%.1f%%\n", m.HasConnect, m.ConnectRate)
	fmt.Fprintf(tw, "Connect trial to paid\t%d/%d\t%.1f%%\n", m.ConnectActive, m.HasConnect, m.TrialToPaid)
	fmt.Fprintf(tw, "Total paid\t%s\t\n", m.TotalPaid.StringFixed(2))
	tw.Flush()

	if len(weekly) > 0 {
		fmt.Println()
		tw = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "Week\tSignups\tWoW")
		for _, w := range weekly {
			change := "-"
			if w.WoWChange != nil {
				change = fmt.Sprintf("%+.1f%%", *w.WoWChange)
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\n", w.Label, w.Signups, change)
		}
		tw.Flush()
	}
	return nil
}
