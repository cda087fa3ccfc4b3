// Package cmd defines the soc-alert-relay command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"soc-alert-relay-go/internal/app"
	"soc-alert-relay-go/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "soc-alert-relay",
	Short: "Security alert relay with tumbling-window dedup and Telegram dispatch",
	Long: `soc-alert-relay polls a mailbox for endpoint-protection alert mail,
normalizes each message into a canonical event, deduplicates repeats within
a tumbling window and dispatches the survivors to Telegram chats.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
}

func initConfig() {
	if cfgFile != "" {
		config.SetConfigFile(cfgFile)
	}

	var err error
	cfg, err = config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}

	app.ConfigureLogging(&cfg.Logging)
}
