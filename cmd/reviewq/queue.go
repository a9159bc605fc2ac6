package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"reviewq/pkg/bus"
	"reviewq/pkg/queue"
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Claim the oldest pending item",
	RunE: func(cmd *cobra.Command, args []string) error {
		it, err := newClient().ClaimNext(cmd.Context())
		if errors.Is(err, queue.ErrEmptyQueue) {
			fmt.Println("Nothing to claim: the queue is empty.")
			return nil
		}
		if err != nil {
			return err
		}
		return printItem(it)
	},
}

var claimCmd = &cobra.Command{
	Use:   "claim <item-id>",
	Short: "Claim a specific item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		it, err := newClient().Claim(cmd.Context(), args[0])
		if errors.Is(err, queue.ErrAlreadyClaimed) {
			return fmt.Errorf("someone else is reviewing this item")
		}
		if err != nil {
			return err
		}
		return printItem(it)
	},
}

var releaseCmd = &cobra.Command{
	Use:   "release <item-id>",
	Short: "Return a claimed item to the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		it, err := newClient().Release(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Released %s back to pending.\n", it.ID)
		return nil
	},
}

var (
	flagDecision string
	flagFeedback string
	flagTime     int
)

var submitCmd = &cobra.Command{
	Use:   "submit <item-id>",
	Short: "Complete a claimed item with a decision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		it, err := newClient().Submit(cmd.Context(), args[0], queue.Decision(flagDecision), flagFeedback, flagTime)
		if errors.Is(err, queue.ErrNotOwner) {
			return fmt.Errorf("your claim on this item has expired")
		}
		if err != nil {
			return err
		}
		fmt.Printf("Completed %s with decision=%s.\n", it.ID, it.Decision)
		return nil
	},
}

var (
	flagStatus   string
	flagPage     int
	flagPageSize int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show one page of the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := newClient().List(cmd.Context(), queue.Filter{
			Status:   queue.Status(flagStatus),
			Page:     flagPage,
			PageSize: flagPageSize,
		})
		if err != nil {
			return err
		}
		fmt.Printf("pending=%d claimed=%d completed=%d total=%d\n",
			snap.Stats.Pending, snap.Stats.Claimed, snap.Stats.Completed, snap.Stats.Total)
		for _, it := range snap.Items {
			line := fmt.Sprintf("%s  %-9s  %s/%s step %d", it.ID, it.Status, it.ScenarioID, it.LanguageCode, it.StepOrder)
			if it.ClaimedBy != "" {
				line += "  by " + it.ClaimedBy
			}
			if it.Decision != "" {
				line += "  -> " + string(it.Decision)
			}
			fmt.Println(line)
		}
		fmt.Printf("page %d of %d item(s)\n", snap.Page, snap.Total)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := newClient().Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("pending:   %d\nclaimed:   %d\ncompleted: %d\ntotal:     %d\n",
			stats.Pending, stats.Claimed, stats.Completed, stats.Total)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow live queue events",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sub, err := newClient().Stream(ctx)
		if err != nil {
			return err
		}
		defer sub.Close()

		fmt.Println("Watching queue events (ctrl-c to stop)...")
		for e := range sub.Events {
			switch e.Type {
			case bus.EventAnalysisCompleted:
				fmt.Printf("%s  analysis task %s completed\n", time.Now().Format("15:04:05"), e.TaskID)
			default:
				fmt.Printf("%s  %s item=%s by=%s\n", time.Now().Format("15:04:05"), e.Type, e.ItemID, e.Actor)
			}
		}
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed <items.json>",
	Short: "Create pending items from a JSON file (pipeline use)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var items []queue.Item
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		c := newClient()
		for i := range items {
			created, err := c.CreateItem(cmd.Context(), &items[i])
			if err != nil {
				return fmt.Errorf("create item %d: %w", i, err)
			}
			fmt.Printf("created %s (%s/%s)\n", created.ID, created.ScenarioID, created.LanguageCode)
		}
		return nil
	},
}

func printItem(it *queue.Item) error {
	fmt.Printf("Item:     %s\nStatus:   %s\nScenario: %s (execution %s, step %d)\nLanguage: %s\n",
		it.ID, it.Status, it.ScenarioID, it.ExecutionID, it.StepOrder, it.LanguageCode)
	if it.ClaimedBy != "" {
		fmt.Printf("Claimed:  %s\n", it.ClaimedBy)
	}
	if it.Decision != "" {
		fmt.Printf("Decision: %s\n", it.Decision)
	}
	if len(it.ReviewPayload) > 0 {
		payload, err := json.MarshalIndent(it.ReviewPayload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Printf("Payload:\n%s\n", payload)
	}
	return nil
}

func init() {
	submitCmd.Flags().StringVar(&flagDecision, "decision", "", "pass, fail, edge_case, or create_defect")
	submitCmd.Flags().StringVar(&flagFeedback, "feedback", "", "free-text feedback")
	submitCmd.Flags().IntVar(&flagTime, "time", 0, "seconds spent reviewing")
	submitCmd.MarkFlagRequired("decision")

	listCmd.Flags().StringVar(&flagStatus, "status", "", "filter: pending, claimed, completed")
	listCmd.Flags().IntVar(&flagPage, "page", 1, "page number")
	listCmd.Flags().IntVar(&flagPageSize, "page-size", 20, "items per page")

	rootCmd.AddCommand(nextCmd, claimCmd, releaseCmd, submitCmd, listCmd, statsCmd, watchCmd, seedCmd)
}
