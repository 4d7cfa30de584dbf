package operations

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// RestoreDatabase streams the dump object of the named backup directory back
// into mysql: rclone cat -> in-process gunzip -> mysql stdin. An empty name
// selects the newest backup. Unlike the backup run, restore failures are
// returned to the caller as-is.
func (m *Manager) RestoreDatabase(ctx context.Context, dirName string) error {
	if m.cfg.Database.Name == "" {
		return fmt.Errorf("no database configured")
	}

	if dirName == "" {
		latest, err := m.latestBackupDir()
		if err != nil {
			return err
		}
		dirName = latest
	}

	src := path.Join(m.cfg.Remote.BasePath, dirName, dumpObject)
	m.log.Info("restore started", "source", src, "database", m.cfg.Database.Name)

	user, password, err := m.creds(ctx)
	if err != nil {
		return fmt.Errorf("database credentials: %w", err)
	}

	body, err := m.store.Cat(src)
	if err != nil {
		return fmt.Errorf("open remote dump: %w", err)
	}
	defer body.Close()

	gz, err := gzip.NewReader(body)
	if err != nil {
		return fmt.Errorf("decompress dump: %w", err)
	}
	defer gz.Close()

	cmd := exec.CommandContext(ctx, "mysql", "-u", user, m.cfg.Database.Name)
	cmd.Env = append(os.Environ(), "MYSQL_PWD="+password)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("mysql stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start mysql: %w", err)
	}

	_, copyErr := io.Copy(stdin, gz)
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("mysql import: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if copyErr != nil {
		return fmt.Errorf("stream dump: %w", copyErr)
	}
	// Surfaces a nonzero rclone cat exit.
	if err := body.Close(); err != nil {
		return err
	}

	m.log.Info("restore completed", "source", src)
	return nil
}

// latestBackupDir returns the name of the newest convention-matching remote
// backup directory.
func (m *Manager) latestBackupDir() (string, error) {
	entries, err := m.store.ListDirs(m.cfg.Remote.BasePath)
	if err != nil {
		return "", fmt.Errorf("list remote backups: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir && strings.HasPrefix(e.Name, dirPrefix) {
			names = append(names, e.Name)
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no backup directories under %s", m.cfg.Remote.BasePath)
	}
	sort.Strings(names)
	return names[len(names)-1], nil
}
