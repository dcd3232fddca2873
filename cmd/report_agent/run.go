package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/report-retriever/internal/automation"
	"github.com/jonathan/report-retriever/internal/config"
	"github.com/jonathan/report-retriever/internal/jobs"
	"github.com/jonathan/report-retriever/internal/observability"
	"github.com/jonathan/report-retriever/internal/steps"
	"github.com/jonathan/report-retriever/internal/validation"
)

var (
	runUsername  string
	runStartDate string
	runEndDate   string
	runDebug     bool
	runConfig    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Retrieve one report synchronously",
	Long: `Run a single report retrieval from the command line, printing each step
as it executes. The portal password is read from PORTAL_PASSWORD.`,
	RunE: runReport,
}

func init() {
	runCmd.Flags().StringVar(&runUsername, "username", "", "Portal username")
	runCmd.Flags().StringVar(&runStartDate, "start", "", "Start date (MM/DD/YYYY)")
	runCmd.Flags().StringVar(&runEndDate, "end", "", "End date (MM/DD/YYYY)")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "Run the browser headful")
	runCmd.Flags().StringVar(&runConfig, "config", "", "Path to a JSON config file")
	rootCmd.AddCommand(runCmd)
}

func runReport(_ *cobra.Command, _ []string) error {
	cfg := config.FromEnv()
	if runConfig != "" {
		if err := cfg.LoadFile(runConfig); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	req := validation.RunRequest{
		Username:  runUsername,
		Password:  os.Getenv("PORTAL_PASSWORD"),
		StartDate: runStartDate,
		EndDate:   runEndDate,
		Debug:     runDebug,
	}
	req.Normalize()
	if reasons := req.Validate(); len(reasons) > 0 {
		for _, reason := range reasons {
			fmt.Fprintln(os.Stderr, reason)
		}
		return fmt.Errorf("invalid arguments")
	}

	labels := make(map[int]string, steps.Count())
	for _, def := range steps.Catalog() {
		labels[def.ID] = def.Label
	}

	printer := observability.NewPrinter(os.Stdout)
	report := func(stepID int, state jobs.StepState) {
		printer.PrintStep(stepID, labels[stepID], state)
	}

	retriever := automation.New(cfg)
	result, err := retriever.Run(context.Background(), report, automation.Payload{
		Username:  req.Username,
		Password:  req.Password,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Debug:     req.Debug,
	})
	if err != nil {
		return fmt.Errorf("report retrieval failed: %w", err)
	}

	fmt.Printf("Saved %s\n", result.FilePath)
	return nil
}
