package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mbeaufort/mnemo/modules/store/sqlite"
	"github.com/mbeaufort/mnemo/pkg/engine"
)

func contextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context <conversation>",
		Short: "Print the assembled context for a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			store, err := sqlite.Open(cfg.Store.Path, cfg.Store.BusyTimeout)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			e := engine.New(store, nil, engineConfig(cfg), discardLogger(), nil)
			defer e.Close()

			budget, _ := cmd.Flags().GetInt("budget")
			built, err := e.BuildContextWithBudget(context.Background(), args[0], budget)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(built)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	cmd.Flags().Int("budget", 0, "Token budget override (0 = configured default)")
	return cmd
}

func summarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize <conversation>",
		Short: "Run one summarization pass for a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			store, err := sqlite.Open(cfg.Store.Path, cfg.Store.BusyTimeout)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			e := engine.New(store, newGenerator(cfg), engineConfig(cfg), discardLogger(), nil)
			defer e.Close()

			summary, err := e.AutoSummarize(context.Background(), args[0])
			if err != nil {
				return err
			}
			if summary == nil {
				fmt.Println("not eligible: the conversation has not reached the summarization threshold")
				return nil
			}

			fmt.Printf("summary created covering %d turns:\n%s\n", summary.TurnCount, summary.Content)
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}
