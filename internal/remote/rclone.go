// Package remote wraps the rclone CLI, the collaborator that talks to the
// object-storage remote. Everything here shells out; nothing is cached.
package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/kebairia/drivebackup/internal/logger"
	"github.com/kebairia/drivebackup/internal/pipeline"
)

// Entry is one item of a remote directory listing, decoded from the output
// of `rclone lsjson`.
type Entry struct {
	Name  string `json:"Name"`
	IsDir bool   `json:"IsDir"`
}

// Rclone addresses a configured rclone remote by its symbolic name.
type Rclone struct {
	remote string
	log    logger.Logger
}

func New(remote string, log logger.Logger) *Rclone {
	return &Rclone{remote: remote, log: log}
}

// target qualifies a path with the remote name, e.g. "gdrive:backups/x".
func (r *Rclone) target(path string) string {
	return r.remote + ":" + path
}

// run executes one rclone command, returning its stdout. On nonzero exit the
// captured stderr is logged and carried in the returned error.
func (r *Rclone) run(args ...string) (string, error) {
	cmd := exec.Command("rclone", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		diag := strings.TrimSpace(stderr.String())
		r.log.Error("rclone command failed",
			"args", strings.Join(args, " "),
			"stderr", diag,
		)
		return stdout.String(), fmt.Errorf("rclone %s: %w: %s", args[0], err, diag)
	}
	return stdout.String(), nil
}

// Mkdir creates a remote directory. Idempotent; callers treat failure as
// non-fatal because rcat creates missing path segments anyway.
func (r *Rclone) Mkdir(path string) error {
	_, err := r.run("mkdir", r.target(path))
	return err
}

// ListDirs returns the directory entries directly under path, non-recursive.
func (r *Rclone) ListDirs(path string) ([]Entry, error) {
	out, err := r.run("lsjson", r.target(path), "--dirs-only")
	if err != nil {
		return nil, err
	}
	return parseEntries([]byte(out))
}

func parseEntries(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode lsjson output: %w", err)
	}
	return entries, nil
}

// Purge recursively deletes a remote directory and everything in it.
func (r *Rclone) Purge(path string) error {
	_, err := r.run("purge", r.target(path))
	return err
}

// Copy uploads a single local file into the remote directory dir.
func (r *Rclone) Copy(localPath, dir string) error {
	_, err := r.run("copy", localPath, r.target(dir))
	return err
}

// RcatStage builds the strict consumer stage of a streaming pipeline: rclone
// reads the upstream stage's output from stdin and writes it to dest.
func (r *Rclone) RcatStage(dest string) pipeline.Stage {
	return pipeline.Stage{
		Name:    "rclone",
		Command: "rclone",
		Args:    []string{"rcat", r.target(dest), "--stats", "5s"},
	}
}

// catReader streams a remote object; Close reaps the rclone process and
// surfaces its exit status.
type catReader struct {
	io.ReadCloser
	cmd    *exec.Cmd
	stderr *bytes.Buffer
}

func (c *catReader) Close() error {
	c.ReadCloser.Close()
	if err := c.cmd.Wait(); err != nil {
		return fmt.Errorf("rclone cat: %w: %s", err, strings.TrimSpace(c.stderr.String()))
	}
	return nil
}

// Cat opens a streaming read of the remote object at path. The caller must
// Close the reader; Close returns the transfer error, if any.
func (r *Rclone) Cat(path string) (io.ReadCloser, error) {
	cmd := exec.Command("rclone", "cat", r.target(path))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("rclone cat: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("rclone cat: %w", err)
	}
	return &catReader{ReadCloser: stdout, cmd: cmd, stderr: &stderr}, nil
}
