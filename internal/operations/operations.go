package operations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"time"

	"github.com/kebairia/drivebackup/internal/config"
	"github.com/kebairia/drivebackup/internal/logger"
	"github.com/kebairia/drivebackup/internal/pipeline"
	"github.com/kebairia/drivebackup/internal/remote"
	"github.com/kebairia/drivebackup/internal/vault"
)

// Failure taxonomy. Transfer failures come from the strict consumer stage,
// producer failures from any earlier stage exiting outside its tolerance set.
var (
	ErrTransfer  = errors.New("remote transfer failed")
	ErrProducer  = errors.New("backup producer failed")
	ErrNoTargets = errors.New("no backup targets resolved")
)

const (
	runIDLayout   = "20060102_150405"
	dirPrefix     = "backup_"
	dumpObject    = "database.sql.gz"
	archiveObject = "files.tar.gz"
)

// Run identifies one orchestrator execution. The ID is generated once at
// process start and never changes; two runs started within the same second
// collide, a documented risk of the naming scheme.
type Run struct {
	ID        string
	RemoteDir string
}

// NewRun derives a run from the current wall clock. The fixed-width ID keeps
// lexical order equal to chronological order, which retention relies on.
func NewRun(basePath string) Run {
	id := time.Now().Format(runIDLayout)
	return Run{ID: id, RemoteDir: path.Join(basePath, dirPrefix+id)}
}

// LogFile is the run's log artifact path inside the scratch workspace.
func (r Run) LogFile(workspace string) string {
	return filepath.Join(workspace, "backup_log_"+r.ID+".txt")
}

// RemoteStorage is the slice of the rclone collaborator the jobs need.
type RemoteStorage interface {
	Mkdir(path string) error
	ListDirs(path string) ([]remote.Entry, error)
	Purge(path string) error
	Copy(localPath, dir string) error
	Cat(path string) (io.ReadCloser, error)
	RcatStage(dest string) pipeline.Stage
}

// PipelineRunner runs an ordered chain of process stages to completion.
type PipelineRunner interface {
	Run(stages []pipeline.Stage) (pipeline.Outcome, error)
}

// CredentialSource yields the database username and password for the dump
// and restore commands.
type CredentialSource func(ctx context.Context) (user, password string, err error)

// Manager drives the backup jobs of a single run.
type Manager struct {
	ctx     context.Context
	cfg     config.Config
	run     Run
	store   RemoteStorage
	pipes   PipelineRunner
	creds   CredentialSource
	log     logger.Logger
	logPath string
}

type Option func(*Manager)

func WithStorage(s RemoteStorage) Option {
	return func(m *Manager) { m.store = s }
}

func WithRunner(r PipelineRunner) Option {
	return func(m *Manager) { m.pipes = r }
}

func WithLogger(l logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func WithCredentials(c CredentialSource) Option {
	return func(m *Manager) { m.creds = c }
}

// NewManager wires a Manager from the configuration plus any overrides.
// Credentials come from Vault when it is configured, otherwise from the
// config file.
func NewManager(cfg config.Config, run Run, opts ...Option) (*Manager, error) {
	m := &Manager{
		ctx:     context.Background(),
		cfg:     cfg,
		run:     run,
		logPath: run.LogFile(cfg.Workspace),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Global()
	}
	if m.store == nil {
		m.store = remote.New(cfg.Remote.Name, m.log)
	}
	if m.pipes == nil {
		m.pipes = pipeline.NewRunner(m.log)
	}
	if m.creds == nil {
		if cfg.Vault.Address != "" {
			client, err := vault.NewClient(vault.WithAddress(cfg.Vault.Address))
			if err != nil {
				return nil, fmt.Errorf("vault client init: %w", err)
			}
			credPath := cfg.Vault.CredentialsPath
			m.creds = func(ctx context.Context) (string, string, error) {
				c, err := client.DatabaseCredentials(ctx, credPath)
				if err != nil {
					return "", "", err
				}
				return c.Username, c.Password, nil
			}
		} else {
			m.creds = func(context.Context) (string, string, error) {
				return cfg.Database.User, cfg.Database.Password, nil
			}
		}
	}
	return m, nil
}

// classify maps a pipeline failure onto the taxonomy sentinels.
func classify(err error, what string) error {
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		kind := ErrProducer
		if stageErr.Final {
			kind = ErrTransfer
		}
		return fmt.Errorf("%w: %s: %v", kind, what, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}
