package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"soc-alert-relay-go/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay service with scheduler and HTTP API",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	logrus.Info("Starting soc-alert-relay")

	a, err := app.New(cfg, false)
	if err != nil {
		logrus.Fatalf("Failed to initialize: %v", err)
	}

	if err := a.Run(); err != nil {
		logrus.Fatalf("Service error: %v", err)
	}
}
