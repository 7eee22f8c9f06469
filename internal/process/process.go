package process

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/drmpack/internal/types"
	"github.com/m1k1o/drmpack/internal/utils"
)

type Result struct {
	Stdout string
	Stderr string
}

// Runner invokes an external binary and waits for it to exit.
type Runner interface {
	Run(ctx context.Context, binary string, args ...string) (*Result, error)
}

// waitDelay bounds how long Run waits for output pipes after a kill.
const waitDelay = 5 * time.Second

type ExecRunner struct {
	logger zerolog.Logger
}

func New() *ExecRunner {
	return &ExecRunner{
		logger: log.With().Str("module", "process").Logger(),
	}
}

func (r *ExecRunner) Run(ctx context.Context, binary string, args ...string) (*Result, error) {
	binary = ExpandHome(binary)

	logger := r.logger.With().Str("binary", filepath.Base(binary)).Logger()
	logger.Debug().Strs("args", args).Msg("starting process")

	cmd := exec.CommandContext(ctx, binary, args...)
	configureProcessGroup(cmd, logger)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	stderrLog := utils.LogWriter(logger, zerolog.DebugLevel)
	cmd.Stderr = io.MultiWriter(&stderr, stderrLog)

	err := cmd.Run()
	_ = stderrLog.Close()
	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		exitCode := -1

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		logger.Warn().Err(err).Int("exit-code", exitCode).Msg("process failed")

		return result, &types.ProcessError{
			Binary:   binary,
			Args:     args,
			ExitCode: exitCode,
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
			Err:      err,
		}
	}

	logger.Debug().Msg("process finished")
	return result, nil
}

// ExpandHome replaces a leading ~/ with the home directory of the current user.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
