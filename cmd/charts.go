package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/B-Step62/mlflow-sub000/internal/chartgen"
)

var chartsFilter struct {
	runID        string
	experimentID string
}

var chartsCmd = &cobra.Command{
	Use:   "charts",
	Short: "Manage saved charts",
}

var chartsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved charts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChartsList()
	},
}

var chartsDeleteCmd = &cobra.Command{
	Use:   "delete <chart-id>",
	Short: "Delete a saved chart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChartsDelete(args[0])
	},
}

func init() {
	chartsListCmd.Flags().StringVar(&chartsFilter.runID, "run", "", "only charts for this run id")
	chartsListCmd.Flags().StringVar(&chartsFilter.experimentID, "experiment", "", "only charts for this experiment id")

	chartsCmd.AddCommand(chartsListCmd)
	chartsCmd.AddCommand(chartsDeleteCmd)
	rootCmd.AddCommand(chartsCmd)
}

func runChartsList() error {
	c, err := newAPIClient()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	charts, err := c.ListCharts(ctx, chartgen.ChartFilter{
		RunID:        chartsFilter.runID,
		ExperimentID: chartsFilter.experimentID,
	})
	if err != nil {
		return fmt.Errorf("listing charts: %w", err)
	}

	if len(charts) == 0 {
		fmt.Println("No saved charts.")
		return nil
	}

	writeChartsTable(os.Stdout, charts)
	return nil
}

func runChartsDelete(chartID string) error {
	c, err := newAPIClient()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := c.DeleteChart(ctx, chartID); err != nil {
		return fmt.Errorf("deleting chart: %w", err)
	}

	fmt.Printf("Deleted chart %s\n", chartID)
	return nil
}

// writeChartsTable renders the chart listing as aligned columns.
func writeChartsTable(w io.Writer, charts []chartgen.Chart) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHART ID\tNAME\tEXPERIMENT\tRUN\tCREATED")
	for _, c := range charts {
		run := c.RunID
		if run == "" {
			run = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			c.ChartID, c.Name, c.ExperimentID, run,
			c.CreatedAt.UTC().Format(time.RFC3339))
	}
	_ = tw.Flush()
}
