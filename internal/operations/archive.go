package operations

import (
	"errors"
	"os"
	"path"
	"strings"

	"github.com/kebairia/drivebackup/internal/pipeline"
)

// tarChangedDuringRead is tar's "file changed as we read it" exit code. It
// is expected on a live server and tolerated as a warning; anything above it
// is fatal.
const tarChangedDuringRead = 1

// BackupFiles archives the configured targets straight into the run's remote
// directory. Targets whose path no longer exists are skipped with a warning;
// an entirely empty target set is a soft-skip, not a failure of the run.
func (m *Manager) BackupFiles() error {
	dest := path.Join(m.run.RemoteDir, archiveObject)
	m.log.Info("starting file stream", "destination", dest)

	paths, err := m.resolveTargets()
	if errors.Is(err, ErrNoTargets) {
		m.log.Error("no valid targets found to backup, aborting file stream")
		return nil
	}

	args := append([]string{"-czf", "-", "-C", "/"}, paths...)
	stages := []pipeline.Stage{
		{
			Name:      "tar",
			Command:   "tar",
			Args:      args,
			Tolerates: []int{tarChangedDuringRead},
		},
		m.store.RcatStage(dest),
	}

	if _, err := m.pipes.Run(stages); err != nil {
		return classify(err, "file archive")
	}

	m.log.Info("file stream completed successfully")
	return nil
}

// resolveTargets re-checks each configured target against the filesystem and
// returns the surviving paths relative to /, ready for tar -C /.
func (m *Manager) resolveTargets() ([]string, error) {
	var paths []string
	for _, t := range m.cfg.Targets {
		if _, err := os.Stat(t.Path); err != nil {
			m.log.Warn("target not found, skipping", "target", t.Name, "path", t.Path)
			continue
		}
		paths = append(paths, strings.TrimPrefix(t.Path, "/"))
	}
	if len(paths) == 0 {
		return nil, ErrNoTargets
	}
	return paths, nil
}
