package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"reviewq/pkg/analysis"
	"reviewq/pkg/client"
)

var (
	flagLookback  int
	flagMinSize   int
	flagThreshold float64
	flagWait      bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Start a failure-pattern analysis run",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		taskID, err := c.TriggerAnalysis(cmd.Context(), analysis.Params{
			LookbackDays:        flagLookback,
			MinPatternSize:      flagMinSize,
			SimilarityThreshold: flagThreshold,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Started analysis task %s\n", taskID)

		if !flagWait {
			fmt.Println("Check progress with: reviewq analyze-status", taskID)
			return nil
		}

		poller := client.NewPoller(c, cfg.Analysis.PollInterval, cfg.Analysis.PollTimeout)
		t, err := poller.Await(cmd.Context(), taskID)
		if errors.Is(err, client.ErrPollTimeout) {
			fmt.Println("Gave up waiting; the job may still be running. Check later with: reviewq analyze-status", taskID)
			return nil
		}
		if err != nil {
			return err
		}
		return printTask(t)
	},
}

var analyzeStatusCmd = &cobra.Command{
	Use:   "analyze-status <task-id>",
	Short: "Check an analysis task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := newClient().AnalysisStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printTask(t)
	},
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List discovered failure patterns",
	RunE: func(cmd *cobra.Command, args []string) error {
		patterns, err := newClient().Patterns(cmd.Context(), 50)
		if err != nil {
			return err
		}
		if len(patterns) == 0 {
			fmt.Println("No patterns discovered yet.")
			return nil
		}
		for _, p := range patterns {
			fmt.Printf("%s  items=%d scenarios=%d  %q\n", p.PatternKey, p.ItemCount, len(p.ScenarioIDs), p.SampleFeedback)
		}
		return nil
	},
}

func printTask(t *analysis.Task) error {
	fmt.Printf("Task:   %s\nStatus: %s\n", t.ID, t.Status)
	switch t.Status {
	case analysis.TaskSucceeded:
		fmt.Printf("Result: discovered=%d new=%d updated=%d\n",
			t.Result.PatternsDiscovered, t.Result.PatternsNew, t.Result.PatternsUpdated)
	case analysis.TaskFailed:
		fmt.Printf("Error:  %s\n", t.Error)
	}
	return nil
}

func init() {
	analyzeCmd.Flags().IntVar(&flagLookback, "lookback", 0, "days of completed items to analyse (default 30)")
	analyzeCmd.Flags().IntVar(&flagMinSize, "min-size", 0, "minimum items per pattern (default 3)")
	analyzeCmd.Flags().Float64Var(&flagThreshold, "threshold", 0, "feedback similarity threshold 0..1 (default 0.6)")
	analyzeCmd.Flags().BoolVar(&flagWait, "wait", false, "poll until the task finishes")

	rootCmd.AddCommand(analyzeCmd, analyzeStatusCmd, patternsCmd)
}
