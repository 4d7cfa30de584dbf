package cmd

import (
	"fmt"
	"os"

	"github.com/kebairia/drivebackup/internal/config"
	"github.com/kebairia/drivebackup/internal/logger"
	"github.com/kebairia/drivebackup/internal/operations"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Run a full backup now",
	RunE:  runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	// The archive targets include root-owned paths; refuse to start a run
	// that would silently skip most of them. Checked before the workspace
	// or config is touched.
	if os.Geteuid() != 0 {
		fmt.Fprintln(os.Stderr, "Error: must run as root.")
		os.Exit(1)
	}

	var cfg config.Config
	if err := cfg.Load(ConfigFile); err != nil {
		return err
	}

	run := operations.NewRun(cfg.Remote.BasePath)
	log, err := logger.Init(run.LogFile(cfg.Workspace))
	if err != nil {
		return err
	}

	m, err := operations.NewManager(cfg, run, operations.WithLogger(log))
	if err != nil {
		return err
	}

	// A failed run is logged and recorded in the uploaded log artifact;
	// the scheduler still sees a clean exit.
	if err := m.Perform(); err != nil {
		log.Warn("run completed with errors", "id", run.ID)
	}
	return nil
}
