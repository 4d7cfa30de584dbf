package cmd

import (
	"github.com/kebairia/drivebackup/internal/config"
	"github.com/kebairia/drivebackup/internal/logger"
	"github.com/kebairia/drivebackup/internal/operations"
	"github.com/spf13/cobra"
)

var restoreFrom string

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the database dump from a remote backup directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg config.Config
		if err := cfg.Load(ConfigFile); err != nil {
			return err
		}
		log, err := logger.Init("")
		if err != nil {
			return err
		}

		m, err := operations.NewManager(cfg, operations.NewRun(cfg.Remote.BasePath),
			operations.WithLogger(log))
		if err != nil {
			return err
		}
		return m.RestoreDatabase(cmd.Context(), restoreFrom)
	},
}

func init() {
	restoreCmd.Flags().
		StringVarP(&restoreFrom, "from", "s", "", "backup directory name (defaults to the newest)")
}
