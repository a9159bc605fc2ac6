package main

import (
	"fmt"
	"os"
	"os/user"

	"github.com/spf13/cobra"

	"reviewq/internal/config"
	"reviewq/pkg/client"
)

var (
	flagServer   string
	flagReviewer string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "reviewq",
	Short: "Review AI-generated test verdicts",
	Long: `reviewq is the reviewer's command line for the validation queue.

It claims items for exclusive review, records pass/fail/edge-case
decisions, follows live queue activity, and drives asynchronous
failure-pattern analysis runs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "http://localhost:8080", "reviewq server base URL")
	rootCmd.PersistentFlags().StringVar(&flagReviewer, "reviewer", "", "reviewer identity (default: $REVIEWQ_REVIEWER or OS user)")
}

func newClient() *client.Client {
	return client.New(flagServer, reviewerID())
}

func reviewerID() string {
	if flagReviewer != "" {
		return flagReviewer
	}
	if env := os.Getenv("REVIEWQ_REVIEWER"); env != "" {
		return env
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "anonymous"
}
