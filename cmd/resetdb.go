package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"soc-alert-relay-go/internal/storage"
)

var resetDBYes bool

var resetDBCmd = &cobra.Command{
	Use:   "reset-db",
	Short: "Drop and recreate all application tables",
	Run:   runResetDB,
}

func init() {
	resetDBCmd.Flags().BoolVar(&resetDBYes, "yes", false, "confirm the destructive reset")
	rootCmd.AddCommand(resetDBCmd)
}

func runResetDB(cmd *cobra.Command, args []string) {
	if !resetDBYes {
		logrus.Fatal("Refusing to reset the database without --yes")
	}

	db, err := storage.InitDatabase(cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	if err := storage.ResetDatabase(db); err != nil {
		logrus.Fatalf("Failed to reset database: %v", err)
	}

	logrus.Info("Database reset complete")
}
