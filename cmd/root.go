package cmd

import (
	"fmt"
	"os"

	"github.com/kebairia/drivebackup/internal/logger"
	"github.com/spf13/cobra"
)

// ConfigFile is the path to the YAML configuration.
var (
	ConfigFile string
	// rootCmd is the base command for drivebackup. Invoked with no
	// arguments it performs a full backup run, so a bare cron entry works.
	rootCmd = &cobra.Command{
		Use:   "drivebackup",
		Short: "Streaming server backups to an rclone remote",
		Long: `drivebackup streams database dumps and file archives straight to
remote object storage through rclone, without staging them on local
disk, and prunes backup directories beyond the retention window.`,
		RunE:          runBackup,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&ConfigFile, "config", "c", "/etc/drivebackup/config.yaml", "path to YAML config file")
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(pruneCmd)
}
