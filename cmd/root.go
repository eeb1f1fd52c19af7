package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lensview/insight/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "insight",
	Short: "Content analysis pipeline",
	Long:  "Ingests external content (video, article, podcast, document, social post), acquires its text and produces a six-section analytical report via LLM calls grounded in live web-search evidence.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
