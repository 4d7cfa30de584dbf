package operations

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kebairia/drivebackup/internal/config"
	"github.com/kebairia/drivebackup/internal/pipeline"
	"github.com/kebairia/drivebackup/internal/remote"
)

// recordLogger captures log levels and messages for assertions.
type recordLogger struct {
	levels []string
	msgs   []string
}

func (l *recordLogger) record(level, msg string) {
	l.levels = append(l.levels, level)
	l.msgs = append(l.msgs, msg)
}

func (l *recordLogger) Debug(msg string, _ ...any) { l.record("DEBUG", msg) }
func (l *recordLogger) Info(msg string, _ ...any)  { l.record("INFO", msg) }
func (l *recordLogger) Warn(msg string, _ ...any)  { l.record("WARN", msg) }
func (l *recordLogger) Error(msg string, _ ...any) { l.record("ERROR", msg) }

func (l *recordLogger) count(level string) int {
	n := 0
	for _, lv := range l.levels {
		if lv == level {
			n++
		}
	}
	return n
}

// fakeStorage implements RemoteStorage in memory.
type fakeStorage struct {
	entries     []remote.Entry
	listErr     error
	listCalls   int
	purged      []string
	purgeFailOn map[string]error
	mkdirCalls  []string
	mkdirErr    error
	copied      []string
	copyErr     error
	catData     []byte
	catErr      error
}

func (f *fakeStorage) Mkdir(path string) error {
	f.mkdirCalls = append(f.mkdirCalls, path)
	return f.mkdirErr
}

func (f *fakeStorage) ListDirs(string) ([]remote.Entry, error) {
	f.listCalls++
	return f.entries, f.listErr
}

func (f *fakeStorage) Purge(path string) error {
	f.purged = append(f.purged, path)
	return f.purgeFailOn[path]
}

func (f *fakeStorage) Copy(localPath, _ string) error {
	f.copied = append(f.copied, localPath)
	return f.copyErr
}

func (f *fakeStorage) Cat(string) (io.ReadCloser, error) {
	if f.catErr != nil {
		return nil, f.catErr
	}
	return io.NopCloser(bytes.NewReader(f.catData)), nil
}

func (f *fakeStorage) RcatStage(dest string) pipeline.Stage {
	return pipeline.Stage{
		Name:    "rclone",
		Command: "rclone",
		Args:    []string{"rcat", dest},
	}
}

// fakeRunner records stage lists and fails on demand, one error per call.
type fakeRunner struct {
	calls [][]pipeline.Stage
	errs  []error
}

func (f *fakeRunner) Run(stages []pipeline.Stage) (pipeline.Outcome, error) {
	f.calls = append(f.calls, stages)
	if idx := len(f.calls) - 1; idx < len(f.errs) {
		return pipeline.Outcome{}, f.errs[idx]
	}
	return pipeline.Outcome{}, nil
}

func testConfig(workspace string) config.Config {
	return config.Config{
		Remote: config.RemoteConfig{
			Name:     "gdrive",
			BasePath: "backups/automated_server_backups",
		},
		Workspace: workspace,
		Retention: config.RetentionConfig{KeepLast: 14},
		Database: config.DatabaseConfig{
			User:     "prestashop",
			Name:     "prestashop",
			Password: "hunter2",
		},
	}
}

func testRun(cfg config.Config) Run {
	return Run{
		ID:        "20250101_000000",
		RemoteDir: cfg.Remote.BasePath + "/backup_20250101_000000",
	}
}

func testManager(
	t *testing.T,
	cfg config.Config,
	store *fakeStorage,
	runner *fakeRunner,
	log *recordLogger,
) *Manager {
	t.Helper()
	m, err := NewManager(cfg, testRun(cfg),
		WithStorage(store),
		WithRunner(runner),
		WithLogger(log),
		WithCredentials(func(context.Context) (string, string, error) {
			return cfg.Database.User, cfg.Database.Password, nil
		}),
	)
	require.NoError(t, err)
	return m
}
