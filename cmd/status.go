package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/B-Step62/mlflow-sub000/internal/chartgen"
	"github.com/B-Step62/mlflow-sub000/internal/client"
)

var statusWait bool

var statusCmd = &cobra.Command{
	Use:   "status [request-id]",
	Short: "Show the state of a generation request",
	Long: `Show the current state of a generation request. With no argument the
most recently submitted request from this machine is used. Pass --wait
to poll until the request reaches a terminal state.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		requestID := ""
		if len(args) > 0 {
			requestID = args[0]
		}
		return runStatus(requestID)
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusWait, "wait", false, "poll until the request finishes")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(requestID string) error {
	if requestID == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolving home directory: %w", err)
		}
		requestID, err = client.LoadLastRequest(home)
		if err != nil {
			return fmt.Errorf("loading last request: %w", err)
		}
		if requestID == "" {
			return fmt.Errorf("no request id given and none recorded; run \"chartgen generate\" first")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := newAPIClient()
	if err != nil {
		return err
	}

	var st *client.Status
	if statusWait {
		last := ""
		st, err = c.PollUntilTerminal(ctx, requestID, func(progress string) {
			if progress != last {
				last = progress
				fmt.Fprintf(os.Stderr, "... %s\n", progress)
			}
		})
	} else {
		st, err = c.Status(ctx, requestID)
	}
	if err != nil {
		return fmt.Errorf("fetching status: %w", err)
	}

	fmt.Print(formatStatus(st))
	return nil
}

// formatStatus renders one status observation for the terminal.
func formatStatus(st *client.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n", st.RequestID)
	fmt.Fprintf(&b, "Status:  %s\n", st.State)

	switch st.State {
	case chartgen.StatusCompleted:
		if st.Result != nil {
			fmt.Fprintf(&b, "Chart:   %s\n\n", st.Result.ChartTitle)
			b.WriteString(st.Result.ChartCode)
			b.WriteString("\n")
		}
	case chartgen.StatusFailed:
		fmt.Fprintf(&b, "Error:   %s\n", st.ErrorMessage)
	}

	return b.String()
}
