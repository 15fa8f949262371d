package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/B-Step62/mlflow-sub000/internal/client"
	"github.com/B-Step62/mlflow-sub000/internal/render"
	"github.com/B-Step62/mlflow-sub000/internal/security"
)

// generateFlags holds the generate command's flag values.
type generateFlags struct {
	runID        string
	experimentID string
	yes          bool
	outPath      string
	saveName     string
}

var genFlags generateFlags

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Generate a chart from a natural-language prompt",
	Long: `Submit a prompt to the generation API and poll until the chart is
ready. The generated code is shown for review before rendering; pass
--yes to skip the confirmation. Use --out to write the sandboxed HTML
document and --save to persist the chart server-side.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerate(strings.Join(args, " "))
	},
}

func init() {
	generateCmd.Flags().StringVar(&genFlags.runID, "run", "", "run id to anchor the chart to")
	generateCmd.Flags().StringVar(&genFlags.experimentID, "experiment", "", "experiment id to anchor the chart to")
	generateCmd.Flags().BoolVarP(&genFlags.yes, "yes", "y", false, "skip the render confirmation prompt")
	generateCmd.Flags().StringVarP(&genFlags.outPath, "out", "o", "", "write the rendered HTML document to this file")
	generateCmd.Flags().StringVar(&genFlags.saveName, "save", "", "save the chart server-side under this name")
	rootCmd.AddCommand(generateCmd)
}

// runGenerate drives the full generate flow: submit, poll, review,
// render, and optionally save.
func runGenerate(prompt string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := newAPIClient()
	if err != nil {
		return err
	}

	session := client.NewSession(c, nil)
	session.OnChange(progressPrinter(os.Stderr))

	if err := session.Generate(ctx, prompt, genFlags.runID, genFlags.experimentID); err != nil {
		return fmt.Errorf("generating chart: %w", err)
	}

	state := session.State()

	// Remember the request so `chartgen status` can default to it.
	if state.RequestID != "" {
		if home, homeErr := os.UserHomeDir(); homeErr == nil {
			if saveErr := client.SaveLastRequest(home, state.RequestID); saveErr != nil {
				fmt.Fprintf(os.Stderr, "warning: could not record request id: %v\n", saveErr)
			}
		}
	}

	if state.ErrorMessage != "" {
		return fmt.Errorf("generation failed: %s (try again, or rephrase the prompt)", state.ErrorMessage)
	}
	if state.ChartCode == "" {
		return fmt.Errorf("generation returned no chart code")
	}

	fmt.Printf("Chart: %s\n", state.ChartTitle)
	fmt.Printf("Request: %s\n\n", state.RequestID)
	fmt.Println(state.ChartCode)
	fmt.Println()

	if !genFlags.yes {
		ok, err := promptConfirm(os.Stdin, os.Stdout, "Render this chart?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted. Nothing was rendered or saved.")
			return nil
		}
	}

	rendered, err := renderChart(state)
	if err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}

	if genFlags.outPath != "" {
		if err := os.WriteFile(genFlags.outPath, []byte(rendered.Document), 0o644); err != nil {
			return fmt.Errorf("writing document: %w", err)
		}
		fmt.Printf("Rendered document written to %s\n", genFlags.outPath)
	}

	if genFlags.saveName != "" {
		saved, err := c.SaveChart(ctx, client.SaveChartInput{
			Name:         genFlags.saveName,
			ChartCode:    state.ChartCode,
			ExperimentID: genFlags.experimentID,
			RunID:        genFlags.runID,
		})
		if err != nil {
			return fmt.Errorf("saving chart: %w", err)
		}
		fmt.Printf("Saved chart %s (%s)\n", saved.ChartID, saved.ArtifactURI)
	}

	return nil
}

// renderChart vets the generated code and builds the sandbox document.
// Reaching this point implies the user confirmed (or passed --yes).
func renderChart(state client.SessionState) (*render.RenderedChart, error) {
	r := render.New(security.NewDenyList(), slog.Default())
	return r.Render(state.ChartCode, render.Context{
		RunID:        genFlags.runID,
		ExperimentID: genFlags.experimentID,
		Title:        state.ChartTitle,
		Confirmed:    true,
	})
}

// progressPrinter returns an OnChange callback that writes each new
// progress stage to w once, so polling does not repeat lines.
func progressPrinter(w io.Writer) func(client.SessionState) {
	last := ""
	return func(st client.SessionState) {
		if st.Progress == "" || st.Progress == last {
			return
		}
		last = st.Progress
		fmt.Fprintf(w, "... %s\n", st.Progress)
	}
}

// promptConfirm asks a yes/no question on out and reads the answer from
// in. Only "y" and "yes" (case-insensitive) count as consent.
func promptConfirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", question)

	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return false, nil
		}
		return false, fmt.Errorf("reading confirmation: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
