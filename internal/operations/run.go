package operations

import (
	"fmt"
	"os"

	"github.com/kebairia/drivebackup/internal/logger"
)

// Perform executes one full backup run: scratch workspace, remote run
// directory, database stream, file stream, retention. The three jobs are
// sequentially coupled — the first failure aborts the rest — but whatever
// happens, the run log is uploaded and the workspace removed before Perform
// returns. The returned error reports a failed run to the caller; it is
// already logged and is not meant to change the process exit status.
func (m *Manager) Perform() error {
	defer m.finish()

	m.log.Info("backup job started", "id", m.run.ID)

	if err := os.MkdirAll(m.cfg.Workspace, 0o700); err != nil {
		err = fmt.Errorf("create workspace %q: %w", m.cfg.Workspace, err)
		m.log.Error("backup failed", "error", err.Error())
		return err
	}

	// rcat creates missing path segments on upload, so this is best-effort.
	if err := m.store.Mkdir(m.run.RemoteDir); err != nil {
		m.log.Warn("remote directory creation failed, continuing", "error", err.Error())
	}

	if err := m.performJobs(); err != nil {
		m.log.Error("backup failed", "error", err.Error())
		return err
	}
	return nil
}

func (m *Manager) performJobs() error {
	if err := m.BackupDatabase(); err != nil {
		return err
	}
	if err := m.BackupFiles(); err != nil {
		return err
	}
	return m.EnforceRetention()
}

// finish uploads the run log next to the backup objects and removes the
// scratch workspace. Both are best-effort.
func (m *Manager) finish() {
	m.log.Info("backup finished, uploading logs and cleaning up")
	logger.Cleanup()

	if err := m.store.Copy(m.logPath, m.run.RemoteDir); err != nil {
		m.log.Error("log upload failed", "error", err.Error())
	}
	if err := os.RemoveAll(m.cfg.Workspace); err != nil {
		m.log.Error("workspace cleanup failed", "error", err.Error())
	}
}
