package pipeline

import (
	"errors"
	"io"
	"os"
	"os/exec"

	"github.com/kebairia/drivebackup/internal/logger"
)

// ErrNoStages indicates a pipeline run was requested with an empty stage list.
var ErrNoStages = errors.New("pipeline has no stages")

// Runner spawns the stages of a pipeline as concurrently executing external
// processes connected by OS pipes and applies the per-stage exit-code policy.
type Runner struct {
	log logger.Logger
}

func NewRunner(log logger.Logger) *Runner {
	return &Runner{log: log}
}

// Run starts every stage left to right, connecting stage N's stdout to stage
// N+1's stdin through an os.Pipe, waits for all of them, and evaluates the
// exit policy: the final stage must exit 0; earlier stages may exit with a
// code in their tolerance set, which is logged as a warning.
//
// The parent's copies of each pipe end are closed immediately after the
// owning stage is spawned. Holding them open would keep the write side of the
// pipe alive in this process, the downstream stage would never see EOF, and
// the whole pipeline would hang.
func (r *Runner) Run(stages []Stage) (Outcome, error) {
	if len(stages) == 0 {
		return Outcome{}, ErrNoStages
	}

	cmds := make([]*exec.Cmd, 0, len(stages))
	stderrs := make([]*limitBuffer, 0, len(stages))
	var spawnErr *StageError
	var prevRead *os.File

	for i, st := range stages {
		cmd := exec.Command(st.Command, st.Args...)
		if len(st.Env) > 0 {
			cmd.Env = append(os.Environ(), st.Env...)
		}
		capt := &limitBuffer{max: maxStderrCapture}
		cmd.Stderr = capt
		if prevRead != nil {
			cmd.Stdin = prevRead
		}

		var write, nextRead *os.File
		if i < len(stages)-1 {
			pr, pw, err := os.Pipe()
			if err != nil {
				if prevRead != nil {
					prevRead.Close()
				}
				spawnErr = &StageError{Stage: st.Name, Index: i, ExitCode: -1, Stderr: err.Error()}
				break
			}
			cmd.Stdout = pw
			write, nextRead = pw, pr
		} else {
			cmd.Stdout = io.Discard
		}

		err := cmd.Start()
		// Close our copies of this stage's pipe ends right away, started
		// or not. See the method comment: this is what lets EOF propagate.
		if prevRead != nil {
			prevRead.Close()
		}
		if write != nil {
			write.Close()
		}
		if err != nil {
			if nextRead != nil {
				nextRead.Close()
			}
			spawnErr = &StageError{
				Stage:    st.Name,
				Index:    i,
				ExitCode: -1,
				Stderr:   err.Error(),
				Final:    i == len(stages)-1,
			}
			break
		}

		cmds = append(cmds, cmd)
		stderrs = append(stderrs, capt)
		prevRead = nextRead
	}

	// Reap consumer first, like the upstream flow; order does not affect
	// correctness once the parent pipe ends are closed.
	results := make([]StageResult, len(cmds))
	for i := len(cmds) - 1; i >= 0; i-- {
		code := 0
		if err := cmds[i].Wait(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			} else {
				code = -1
			}
		}
		results[i] = StageResult{
			Name:     stages[i].Name,
			ExitCode: code,
			Stderr:   stderrs[i].String(),
		}
	}
	outcome := Outcome{Stages: results}

	if spawnErr != nil {
		return outcome, spawnErr
	}

	// The final stage is the consumer; a nonzero exit there is fatal no
	// matter what, and it is checked before upstream stages so transfer
	// failures are reported as such.
	last := len(stages) - 1
	if res := results[last]; res.ExitCode != 0 {
		return outcome, &StageError{
			Stage:    res.Name,
			Index:    last,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			Final:    true,
		}
	}

	for i := 0; i < last; i++ {
		res := results[i]
		if res.ExitCode == 0 {
			continue
		}
		if stages[i].tolerated(res.ExitCode) {
			results[i].Tolerated = true
			r.log.Warn("stage exited with tolerated code",
				"stage", res.Name,
				"code", res.ExitCode,
			)
			continue
		}
		return outcome, &StageError{
			Stage:    res.Name,
			Index:    i,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
		}
	}

	return outcome, nil
}
