package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roadcheck/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "roadcheck",
	Short: "Road-bike suitability analysis for GPX tracks",
	Long:  "Samples GPX track points, looks up OpenStreetMap road attributes around them, and flags surfaces, way types, access restrictions, and slopes unsuitable for a road bike.",
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
