package operations

import (
	"fmt"
	"path"

	"github.com/kebairia/drivebackup/internal/pipeline"
)

// BackupDatabase streams mysqldump through gzip into the run's remote
// directory. The dump never touches local disk; every stage is strict.
func (m *Manager) BackupDatabase() error {
	if m.cfg.Database.Name == "" {
		m.log.Warn("no database configured, skipping database stream")
		return nil
	}

	dest := path.Join(m.run.RemoteDir, dumpObject)
	m.log.Info("starting database stream", "destination", dest)

	user, password, err := m.creds(m.ctx)
	if err != nil {
		return fmt.Errorf("database credentials: %w", err)
	}

	stages := []pipeline.Stage{
		{
			Name:    "mysqldump",
			Command: "mysqldump",
			Args:    []string{"-u", user, m.cfg.Database.Name, "--single-transaction", "--quick"},
			// Password via process environment, never argv.
			Env: []string{"MYSQL_PWD=" + password},
		},
		{
			Name:    "gzip",
			Command: "gzip",
			Args:    []string{"-c"},
		},
		m.store.RcatStage(dest),
	}

	if _, err := m.pipes.Run(stages); err != nil {
		return classify(err, "database dump")
	}

	m.log.Info("database stream completed successfully")
	return nil
}
