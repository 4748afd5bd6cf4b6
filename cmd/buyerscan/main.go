package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/octobees/turmeric-buyers/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "buyerscan",
	Short: "Collect, validate and export turmeric buyer leads",
	Long: `Collects prospective turmeric buyers from spreadsheets, B2B directories and
the scrape worker, validates every contact field, drops duplicates and writes
the accepted buyers to CSV, JSON or XLSX.`,
	SilenceUsage: true,
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
