package operations

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebairia/drivebackup/internal/config"
	"github.com/kebairia/drivebackup/internal/pipeline"
)

func scratchDir(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "scratch")
}

// Full happy path: both streams run, retention purges the excess, the log is
// uploaded once and the workspace is gone afterwards.
func TestPerformSuccessfulRun(t *testing.T) {
	target := t.TempDir()
	ws := scratchDir(t)
	cfg := testConfig(ws)
	cfg.Targets = []config.Target{{Name: "data", Path: target}}

	store := &fakeStorage{entries: backupEntries(20)}
	runner := &fakeRunner{}
	m := testManager(t, cfg, store, runner, &recordLogger{})

	require.NoError(t, m.Perform())

	assert.Equal(t, []string{m.run.RemoteDir}, store.mkdirCalls)
	require.Len(t, runner.calls, 2, "database stream then file stream")
	assert.Len(t, runner.calls[0], 3)
	assert.Len(t, runner.calls[1], 2)
	assert.Len(t, store.purged, 6, "20 existing backups, window of 14")
	assert.Equal(t, []string{m.logPath}, store.copied)

	_, err := os.Stat(ws)
	assert.True(t, os.IsNotExist(err), "workspace should be removed")
}

// A dump failure aborts the file stream and retention, but the log is still
// uploaded and the workspace still removed.
func TestPerformDumpFailureSkipsRemainingJobs(t *testing.T) {
	target := t.TempDir()
	ws := scratchDir(t)
	cfg := testConfig(ws)
	cfg.Targets = []config.Target{{Name: "data", Path: target}}

	store := &fakeStorage{entries: backupEntries(20)}
	runner := &fakeRunner{errs: []error{
		&pipeline.StageError{Stage: "mysqldump", Index: 0, ExitCode: 2},
	}}
	m := testManager(t, cfg, store, runner, &recordLogger{})

	err := m.Perform()
	require.ErrorIs(t, err, ErrProducer)

	assert.Len(t, runner.calls, 1, "file stream must not start after a dump failure")
	assert.Zero(t, store.listCalls, "retention must not run after a dump failure")
	assert.Equal(t, []string{m.logPath}, store.copied, "log uploaded exactly once")

	_, statErr := os.Stat(ws)
	assert.True(t, os.IsNotExist(statErr), "workspace removed even on failure")
}

// Remote run-directory creation failing is non-fatal; the dump proceeds.
func TestPerformRemoteMkdirFailureContinues(t *testing.T) {
	target := t.TempDir()
	cfg := testConfig(scratchDir(t))
	cfg.Targets = []config.Target{{Name: "data", Path: target}}

	store := &fakeStorage{
		entries:  backupEntries(3),
		mkdirErr: errors.New("permission denied"),
	}
	runner := &fakeRunner{}
	log := &recordLogger{}
	m := testManager(t, cfg, store, runner, log)

	require.NoError(t, m.Perform())
	assert.Len(t, runner.calls, 2)
	assert.GreaterOrEqual(t, log.count("WARN"), 1)
}

// A tolerated archive warning is handled inside the pipeline runner; the job
// succeeds and retention still runs afterwards.
func TestPerformArchiveWarningStillRunsRetention(t *testing.T) {
	target := t.TempDir()
	cfg := testConfig(scratchDir(t))
	cfg.Targets = []config.Target{{Name: "data", Path: target}}

	store := &fakeStorage{entries: backupEntries(20)}
	runner := &fakeRunner{} // tolerated exits never surface as errors
	m := testManager(t, cfg, store, runner, &recordLogger{})

	require.NoError(t, m.Perform())
	assert.Equal(t, 1, store.listCalls)
	assert.Len(t, store.purged, 6)
}

// An archive failure after a successful dump skips retention.
func TestPerformArchiveFailureSkipsRetention(t *testing.T) {
	target := t.TempDir()
	cfg := testConfig(scratchDir(t))
	cfg.Targets = []config.Target{{Name: "data", Path: target}}

	store := &fakeStorage{entries: backupEntries(20)}
	runner := &fakeRunner{errs: []error{
		nil,
		&pipeline.StageError{Stage: "rclone", Index: 1, ExitCode: 1, Final: true},
	}}
	m := testManager(t, cfg, store, runner, &recordLogger{})

	err := m.Perform()
	require.ErrorIs(t, err, ErrTransfer)
	assert.Zero(t, store.listCalls)
	assert.Equal(t, []string{m.logPath}, store.copied)
}

// Zero resolvable targets is a soft-skip: the run carries on to retention and
// reports success.
func TestPerformZeroTargetsIsNotFatal(t *testing.T) {
	cfg := testConfig(scratchDir(t))
	cfg.Targets = []config.Target{
		{Name: "gone", Path: filepath.Join(t.TempDir(), "missing")},
	}

	store := &fakeStorage{entries: backupEntries(3)}
	runner := &fakeRunner{}
	m := testManager(t, cfg, store, runner, &recordLogger{})

	require.NoError(t, m.Perform())
	assert.Len(t, runner.calls, 1, "only the database stream runs")
	assert.Equal(t, 1, store.listCalls, "retention still runs")
}

// The workspace is created with owner-only permissions and reused when it
// already exists.
func TestPerformReusesExistingWorkspace(t *testing.T) {
	ws := scratchDir(t)
	require.NoError(t, os.MkdirAll(ws, 0o700))
	cfg := testConfig(ws)

	store := &fakeStorage{entries: backupEntries(1)}
	m := testManager(t, cfg, store, &fakeRunner{}, &recordLogger{})

	require.NoError(t, m.Perform())
}

// Log upload failing must not stop workspace cleanup.
func TestPerformCleansUpWhenLogUploadFails(t *testing.T) {
	ws := scratchDir(t)
	cfg := testConfig(ws)

	store := &fakeStorage{
		entries: backupEntries(1),
		copyErr: errors.New("quota exceeded"),
	}
	log := &recordLogger{}
	m := testManager(t, cfg, store, &fakeRunner{}, log)

	require.NoError(t, m.Perform())
	assert.GreaterOrEqual(t, log.count("ERROR"), 1)

	_, err := os.Stat(ws)
	assert.True(t, os.IsNotExist(err))
}
