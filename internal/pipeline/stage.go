package pipeline

import (
	"bytes"
	"fmt"
	"strings"
)

// Stage describes one external process in a pipeline. Its standard output is
// streamed into the next stage's standard input; nothing is buffered to disk
// in between.
type Stage struct {
	Name    string
	Command string
	Args    []string
	// Env holds extra KEY=value pairs appended to the inherited environment.
	// Secrets (database passwords) travel here, never in Args, so they do
	// not show up in process listings.
	Env []string
	// Tolerates lists nonzero exit codes accepted with a warning instead of
	// failing the pipeline. Ignored for the final stage, which is always
	// strict.
	Tolerates []int
}

func (s Stage) tolerated(code int) bool {
	for _, c := range s.Tolerates {
		if c == code {
			return true
		}
	}
	return false
}

// StageResult reports how one stage terminated.
type StageResult struct {
	Name     string
	ExitCode int
	Stderr   string
	// Tolerated is set when the stage exited nonzero but the code was in
	// its tolerance set.
	Tolerated bool
}

// Outcome collects the per-stage results of one pipeline run.
type Outcome struct {
	Stages []StageResult
}

// StageError is the fatal failure of a single stage. Final distinguishes the
// strict consumer stage (a transfer failure) from an upstream producer or
// filter failure.
type StageError struct {
	Stage    string
	Index    int
	ExitCode int
	Stderr   string
	Final    bool
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("stage %q exited with code %d", e.Stage, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// maxStderrCapture bounds per-stage error-channel capture so a chatty tool
// cannot balloon memory.
const maxStderrCapture = 64 << 10

// limitBuffer is a Writer that keeps the first max bytes and drops the rest.
type limitBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *limitBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			p = p[:room]
		}
		b.buf.Write(p)
	}
	return n, nil
}

func (b *limitBuffer) String() string {
	return strings.TrimSpace(b.buf.String())
}
