package main

import (
	"context"
	"fmt"

	"github.com/DanelSchwartz/TeleScan-OCR/internal/logger"
	"github.com/spf13/cobra"
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List recent dialogs available to the source",
	Args:  cobra.NoArgs,
	RunE:  runChats,
}

func init() {
	rootCmd.AddCommand(chatsCmd)
	chatsCmd.Flags().Int("limit", 0, "Maximum dialogs to list (0 for all)")
}

func runChats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	client, err := newSource(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	chats, err := client.Chats(context.Background(), limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, c := range chats {
		fmt.Fprintf(out, "%d\t%s\n", c.ID, c.Title)
	}
	fmt.Fprintf(out, "%d chats\n", len(chats))
	return nil
}
