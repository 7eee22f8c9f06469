//go:build !windows
// +build !windows

package process

import (
	"os/exec"
	"syscall"

	"github.com/rs/zerolog"
)

// configureProcessGroup starts cmd in its own process group and kills
// the whole group when the context is cancelled.
func configureProcessGroup(cmd *exec.Cmd, logger zerolog.Logger) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	cmd.Cancel = func() error {
		pgid, err := syscall.Getpgid(cmd.Process.Pid)
		if err != nil {
			logger.Err(err).Msg("could not get process group id")
			return cmd.Process.Kill()
		}

		err = syscall.Kill(-pgid, syscall.SIGKILL)
		logger.Err(err).Msg("killing process group")
		return err
	}
}
