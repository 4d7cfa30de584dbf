package operations

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// EnforceRetention lists the remote backup directories and purges the oldest
// beyond the configured window. Run IDs are fixed-width timestamps, so
// ascending name order is ascending chronological order and no modification
// times are needed from the remote. Per-directory purge failures are logged
// and pruning continues.
func (m *Manager) EnforceRetention() error {
	m.log.Info("checking retention policy")

	entries, err := m.store.ListDirs(m.cfg.Remote.BasePath)
	if err != nil {
		return fmt.Errorf("list remote backups: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir && strings.HasPrefix(e.Name, dirPrefix) {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)

	m.log.Info("found backup folders", "count", len(names))

	keep := m.cfg.Retention.KeepLast
	if len(names) <= keep {
		m.log.Info("retention limit not reached")
		return nil
	}

	excess := names[:len(names)-keep]
	m.log.Info("retention exceeded, deleting old folders", "count", len(excess))
	for _, name := range excess {
		m.log.Info("purging old backup folder", "folder", name)
		if err := m.store.Purge(path.Join(m.cfg.Remote.BasePath, name)); err != nil {
			m.log.Error("purge failed", "folder", name, "error", err.Error())
		}
	}
	return nil
}
